package notifier

import (
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/quantfade/singularity-trader/internal/utils"
)

type TelegramNotifier struct {
	Token   string
	ChatID  string
	Retries int
	Delay   time.Duration
}

func NewTelegramNotifier(token, chatID string, retries int, delay time.Duration) *TelegramNotifier {
	return &TelegramNotifier{Token: token, ChatID: chatID, Retries: retries, Delay: delay}
}

func (t *TelegramNotifier) Send(message string) error {
	apiURL := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", t.Token)
	resp, err := http.PostForm(apiURL, url.Values{
		"chat_id": {t.ChatID},
		"text":    {message},
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		return fmt.Errorf("telegram send failed: %s", resp.Status)
	}
	return nil
}

// SendWithRetry retries transient failures with a fixed delay. Delivery is
// best effort; the last error is returned for logging only.
func (t *TelegramNotifier) SendWithRetry(message string) error {
	log := utils.GetLogger()

	var err error
	for attempt := 0; attempt <= t.Retries; attempt++ {
		if err = t.Send(message); err == nil {
			return nil
		}
		log.Warn().Err(err).Int("attempt", attempt+1).Msg("telegram delivery failed")
		time.Sleep(t.Delay)
	}
	return err
}
