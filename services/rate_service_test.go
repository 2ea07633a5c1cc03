package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const bnrFeed = `<?xml version="1.0" encoding="utf-8"?>
<DataSet xmlns="http://www.bnr.ro/xsd" xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance">
	<Header>
		<Publisher>National Bank of Romania</Publisher>
		<PublishingDate>2024-05-10</PublishingDate>
		<MessageType>DR</MessageType>
	</Header>
	<Body>
		<Subject>Reference rates</Subject>
		<OrigCurrency>RON</OrigCurrency>
		<Cube date="2024-05-10">
			<Rate currency="EUR">5.0000</Rate>
			<Rate currency="USD">4.0000</Rate>
			<Rate currency="HUF" multiplier="100">1.2500</Rate>
		</Cube>
	</Body>
</DataSet>`

func TestParseRates(t *testing.T) {
	table, err := ParseRates([]byte(bnrFeed))
	require.NoError(t, err)

	assert.Equal(t, time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC), table.Date)
	requireDecimal(t, "5", table.Rates["EUR"])
	requireDecimal(t, "0.0125", table.Rates["HUF"])
	requireDecimal(t, "1", table.Rates["RON"])

	usd, err := table.ToEUR(decimal.RequireFromString("100"), "usd")
	require.NoError(t, err)
	requireDecimal(t, "80", usd)

	ron, err := table.ToEUR(decimal.RequireFromString("10"), "RON")
	require.NoError(t, err)
	requireDecimal(t, "2", ron)

	huf, err := table.ToEUR(decimal.RequireFromString("40000"), "HUF")
	require.NoError(t, err)
	requireDecimal(t, "100", huf)

	_, err = table.ToEUR(decimal.RequireFromString("1"), "XYZ")
	assert.True(t, IsValidation(err))
}

func TestParseRatesRejectsBadFeeds(t *testing.T) {
	_, err := ParseRates([]byte("not xml"))
	assert.Error(t, err)

	_, err = ParseRates([]byte(`<DataSet><Body></Body></DataSet>`))
	assert.Error(t, err)

	_, err = ParseRates([]byte(`<DataSet><Body><Cube date="2024-05-10"><Rate currency="USD">4</Rate></Cube></Body></DataSet>`))
	assert.Error(t, err, "без курса EUR пересчет невозможен")
}

func TestRateServiceCachesFeed(t *testing.T) {
	var hits int32
	var fail atomic.Bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		if fail.Load() {
			http.Error(w, "down", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/xml")
		_, _ = w.Write([]byte(bnrFeed))
	}))
	defer server.Close()

	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	svc := newRateService(server.URL, time.Hour, server.Client())
	svc.now = func() time.Time { return now }
	ctx := context.Background()

	amount, err := svc.ToEUR(ctx, decimal.RequireFromString("50"), "USD")
	require.NoError(t, err)
	requireDecimal(t, "40", amount)

	_, err = svc.ToEUR(ctx, decimal.RequireFromString("50"), "USD")
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))

	// EUR не требует загрузки курсов
	_, err = svc.ToEUR(ctx, decimal.RequireFromString("50"), "EUR")
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))

	// После истечения TTL при недоступном источнике используются сохраненные курсы
	now = now.Add(2 * time.Hour)
	fail.Store(true)
	amount, err = svc.ToEUR(ctx, decimal.RequireFromString("50"), "USD")
	require.NoError(t, err)
	requireDecimal(t, "40", amount)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}

func TestRateServiceWithoutCacheFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	svc := newRateService(server.URL, time.Hour, server.Client())
	_, err := svc.ToEUR(context.Background(), decimal.RequireFromString("1"), "USD")
	require.Error(t, err)
	assert.False(t, IsValidation(err))
}
