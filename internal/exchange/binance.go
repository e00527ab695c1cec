package exchange

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2"

	"github.com/quantfade/singularity-trader/internal/candle"
)

// Binance implements CandleSource over the spot klines API. Market data
// endpoints need no credentials; keys are only read when present.
type Binance struct {
	client *binance.Client
}

func NewBinance(apiKey, secretKey string) *Binance {
	return &Binance{client: binance.NewClient(apiKey, secretKey)}
}

func (b *Binance) FetchCandles(ctx context.Context, symbol, timeframe string, limit int) ([]candle.Candle, error) {
	klines, err := b.client.NewKlinesService().
		Symbol(symbol).
		Interval(timeframe).
		Limit(limit).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch klines for %s %s: %w", symbol, timeframe, err)
	}

	candles := make([]candle.Candle, 0, len(klines))
	for _, k := range klines {
		c := candle.Candle{
			Timestamp: time.Unix(k.OpenTime/1000, 0).UTC(),
			Open:      parseFloat(k.Open),
			High:      parseFloat(k.High),
			Low:       parseFloat(k.Low),
			Close:     parseFloat(k.Close),
			Volume:    parseFloat(k.Volume),
			Symbol:    symbol,
			Timeframe: timeframe,
		}
		if err := c.Validate(); err != nil {
			return nil, fmt.Errorf("bad kline for %s at %s: %w", symbol, c.Timestamp, err)
		}
		candles = append(candles, c)
	}

	if err := candle.ValidateSeries(candles); err != nil {
		return nil, fmt.Errorf("kline series for %s: %w", symbol, err)
	}
	return candles, nil
}

func (b *Binance) LatestPrice(ctx context.Context, symbol string) (float64, error) {
	prices, err := b.client.NewListPricesService().Symbol(symbol).Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch price for %s: %w", symbol, err)
	}
	if len(prices) == 0 {
		return 0, fmt.Errorf("no price returned for %s", symbol)
	}
	return parseFloat(prices[0].Price), nil
}

func parseFloat(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}
