package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"fabrikaProject/config"
	"fabrikaProject/models"
	"fabrikaProject/utils"

	"github.com/beevik/etree"
	"github.com/shopspring/decimal"
)

// baseCurrency валюта, в которой публикуются курсы НБР
const baseCurrency = "RON"

// RateTable содержит курсы валют на одну дату: цена одной единицы валюты в леях
type RateTable struct {
	Date  time.Time
	Rates map[string]decimal.Decimal
}

// ParseRates разбирает XML-ленту курсов Национального банка Румынии
func ParseRates(data []byte) (*RateTable, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("ошибка разбора курсов валют: %w", err)
	}

	cube := doc.FindElement("//Cube")
	if cube == nil {
		return nil, fmt.Errorf("в ленте курсов нет элемента Cube")
	}

	table := &RateTable{
		Rates: map[string]decimal.Decimal{baseCurrency: decimal.NewFromInt(1)},
	}
	if date := cube.SelectAttrValue("date", ""); date != "" {
		parsed, err := time.Parse("2006-01-02", date)
		if err != nil {
			return nil, fmt.Errorf("неверная дата курсов %q: %w", date, err)
		}
		table.Date = parsed
	}

	for _, rate := range cube.SelectElements("Rate") {
		currency := strings.ToUpper(rate.SelectAttrValue("currency", ""))
		if currency == "" {
			continue
		}
		value, err := decimal.NewFromString(strings.TrimSpace(rate.Text()))
		if err != nil {
			return nil, fmt.Errorf("неверный курс %s: %w", currency, err)
		}
		multiplier := decimal.NewFromInt(1)
		if m := rate.SelectAttrValue("multiplier", ""); m != "" {
			multiplier, err = decimal.NewFromString(m)
			if err != nil || !multiplier.IsPositive() {
				return nil, fmt.Errorf("неверный множитель курса %s: %q", currency, m)
			}
		}
		table.Rates[currency] = value.Div(multiplier)
	}

	if _, ok := table.Rates[models.CurrencyEUR]; !ok {
		return nil, fmt.Errorf("в ленте курсов нет курса %s", models.CurrencyEUR)
	}
	return table, nil
}

// ToEUR переводит сумму в евро через кросс-курс к лею, с округлением до центов
func (t *RateTable) ToEUR(amount decimal.Decimal, currency string) (decimal.Decimal, error) {
	currency = strings.ToUpper(currency)
	if currency == models.CurrencyEUR {
		return amount, nil
	}
	rate, ok := t.Rates[currency]
	if !ok {
		return decimal.Zero, newValidationError("неизвестная валюта: " + currency)
	}
	return amount.Mul(rate).DivRound(t.Rates[models.CurrencyEUR], 2), nil
}

// RateService загружает и кэширует курсы валют
type RateService struct {
	url    string
	ttl    time.Duration
	client *http.Client
	now    func() time.Time

	mu        sync.Mutex
	table     *RateTable
	fetchedAt time.Time
}

// NewRateService создает новый экземпляр RateService
func NewRateService(cfg *config.Config) *RateService {
	return newRateService(cfg.Rates.URL, cfg.Rates.TTL, &http.Client{Timeout: 15 * time.Second})
}

func newRateService(url string, ttl time.Duration, client *http.Client) *RateService {
	return &RateService{
		url:    url,
		ttl:    ttl,
		client: client,
		now:    time.Now,
	}
}

// Rates возвращает актуальную таблицу курсов.
// Если загрузка не удалась, а в кэше есть устаревшая таблица, используется она.
func (s *RateService) Rates(ctx context.Context) (*RateTable, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.table != nil && s.now().Sub(s.fetchedAt) < s.ttl {
		return s.table, nil
	}

	table, err := s.fetch(ctx)
	if err != nil {
		if s.table != nil {
			utils.WithFields(utils.Fields{"url": s.url}).WithError(err).
				Warn("не удалось обновить курсы валют, используются сохраненные")
			return s.table, nil
		}
		return nil, err
	}

	s.table = table
	s.fetchedAt = s.now()
	utils.LogInfo("загружены курсы валют на %s (%d валют)", table.Date.Format("2006-01-02"), len(table.Rates))
	return table, nil
}

// ToEUR переводит сумму в валюте currency в евро по текущим курсам
func (s *RateService) ToEUR(ctx context.Context, amount decimal.Decimal, currency string) (decimal.Decimal, error) {
	if strings.EqualFold(currency, models.CurrencyEUR) {
		return amount, nil
	}
	table, err := s.Rates(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	return table.ToEUR(amount, currency)
}

func (s *RateService) fetch(ctx context.Context) (*RateTable, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания запроса курсов: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ошибка загрузки курсов валют: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("сервер курсов вернул статус %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения курсов валют: %w", err)
	}
	return ParseRates(data)
}
