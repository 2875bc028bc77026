package controllers

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82"
	"gorm.io/gorm"

	"github.com/sciencedream/jukustream/app/models"
	"github.com/sciencedream/jukustream/internal/pkg/billing"
)

const testWebhookSecret = "whsec_test_secret"

// memoryBillingRepo backs the billing service in controller tests. The mutex
// matters for the overlapping-delivery test, where two requests hit the repo
// at once.
type memoryBillingRepo struct {
	mu         sync.Mutex
	events     []models.WebhookEvent
	subscribed map[uint]string
	licenses   []*models.License
	sales      []*models.Sale
	nextID     uint
}

func newMemoryBillingRepo() *memoryBillingRepo {
	return &memoryBillingRepo{subscribed: map[uint]string{}}
}

func (m *memoryBillingRepo) Transaction(fn func(billing.Repository) error) error {
	return fn(m)
}

func (m *memoryBillingRepo) CreateWebhookEventIfNotExists(event *models.WebhookEvent) (bool, *models.WebhookEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.events {
		if m.events[i].Provider == event.Provider && m.events[i].ProviderEventID == event.ProviderEventID {
			stored := m.events[i]
			return false, &stored, nil
		}
	}
	m.nextID++
	event.ID = m.nextID
	event.CreatedAt = time.Now()
	m.events = append(m.events, *event)
	stored := *event
	return true, &stored, nil
}

func (m *memoryBillingRepo) MarkWebhookProcessed(id uint, processingError string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.events {
		if m.events[i].ID == id {
			now := time.Now()
			m.events[i].ProcessedAt = &now
			m.events[i].ProcessingError = processingError
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (m *memoryBillingRepo) ListFailedWebhookEvents(unmarkedBefore time.Time, limit int) ([]models.WebhookEvent, error) {
	return nil, nil
}

func (m *memoryBillingRepo) MarkUserSubscribed(userID uint, stripeCustomerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscribed[userID] = stripeCustomerID
	return nil
}

func (m *memoryBillingRepo) FindLicenseByUserID(userID uint) (*models.License, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.licenses {
		if l.UserID == userID {
			return l, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *memoryBillingRepo) CreateLicense(license *models.License) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	license.ID = m.nextID
	m.licenses = append(m.licenses, license)
	return nil
}

func (m *memoryBillingRepo) SaveLicense(license *models.License) error {
	return nil
}

func (m *memoryBillingRepo) UpdateLicensesByStripeCustomerID(stripeCustomerID string, updates map[string]interface{}) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var affected int64
	for _, l := range m.licenses {
		if l.StripeCustomerID != stripeCustomerID {
			continue
		}
		if v, ok := updates["is_canceled"]; ok {
			l.IsCanceled = v.(bool)
		}
		if v, ok := updates["expires_at"]; ok {
			l.ExpiresAt = v.(time.Time)
		}
		affected++
	}
	return affected, nil
}

func (m *memoryBillingRepo) CreateSale(sale *models.Sale) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sales {
		if s.ProviderEventID != "" && s.ProviderEventID == sale.ProviderEventID {
			return nil
		}
	}
	m.nextID++
	sale.ID = m.nextID
	m.sales = append(m.sales, sale)
	return nil
}

func newWebhookTestApp(repo billing.Repository) *fiber.App {
	app := fiber.New()
	controller := NewWebhookController(billing.NewService(repo), testWebhookSecret)
	app.Post("/webhooks/stripe", controller.HandleStripeWebhook)
	return app
}

// signPayload computes the Stripe-Signature header value for a payload,
// matching the scheme verified by webhook.ConstructEvent.
func signPayload(payload []byte, secret string, ts time.Time) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(fmt.Sprintf("%d", ts.Unix())))
	mac.Write([]byte("."))
	mac.Write(payload)
	return fmt.Sprintf("t=%d,v1=%s", ts.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

func stripeEventPayload(eventID, eventType string, object map[string]interface{}) []byte {
	payload, _ := json.Marshal(map[string]interface{}{
		"id":          eventID,
		"object":      "event",
		"api_version": stripe.APIVersion,
		"type":        eventType,
		"data":        map[string]interface{}{"object": object},
	})
	return payload
}

func postWebhook(t *testing.T, app *fiber.App, payload []byte, signature string) (int, map[string]interface{}) {
	t.Helper()

	req := httptest.NewRequest("POST", "/webhooks/stripe", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set("Stripe-Signature", signature)
	}

	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var body map[string]interface{}
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &body))
	}
	return resp.StatusCode, body
}

func TestStripeWebhookRejectsBadSignature(t *testing.T) {
	repo := newMemoryBillingRepo()
	app := newWebhookTestApp(repo)

	payload := stripeEventPayload("evt_1", "checkout.session.completed", map[string]interface{}{
		"id":           "cs_1",
		"amount_total": 12000,
		"metadata":     map[string]string{"user_id": "1"},
	})

	status, body := postWebhook(t, app, payload, signPayload(payload, "whsec_wrong", time.Now()))
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "invalid_signature", body["error"])

	// A rejected delivery must leave no trace, not even a ledger row.
	assert.Empty(t, repo.events)
	assert.Empty(t, repo.sales)
	assert.Empty(t, repo.subscribed)
}

func TestStripeWebhookRejectsMissingSignature(t *testing.T) {
	repo := newMemoryBillingRepo()
	app := newWebhookTestApp(repo)

	payload := stripeEventPayload("evt_1", "checkout.session.completed", nil)
	status, _ := postWebhook(t, app, payload, "")
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Empty(t, repo.events)
}

func TestStripeWebhookCheckoutCompleted(t *testing.T) {
	repo := newMemoryBillingRepo()
	app := newWebhookTestApp(repo)

	payload := stripeEventPayload("evt_1", "checkout.session.completed", map[string]interface{}{
		"id":           "cs_1",
		"customer":     map[string]interface{}{"id": "cus_123"},
		"amount_total": 12000,
		"metadata": map[string]string{
			"user_id": "1",
			"juku_id": "7",
			"plan":    "subscription",
		},
	})

	status, body := postWebhook(t, app, payload, signPayload(payload, testWebhookSecret, time.Now()))
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, true, body["received"])

	assert.Equal(t, "cus_123", repo.subscribed[1])

	require.Len(t, repo.licenses, 1)
	assert.Equal(t, uint(models.AllAccessGradeID), repo.licenses[0].GradeID)

	require.Len(t, repo.sales, 1)
	assert.Equal(t, int64(12000), repo.sales[0].Amount)
	require.NotNil(t, repo.sales[0].JukuID)
	assert.Equal(t, uint(7), *repo.sales[0].JukuID)

	require.Len(t, repo.events, 1)
	assert.NotNil(t, repo.events[0].ProcessedAt)
	assert.Empty(t, repo.events[0].ProcessingError)
}

func TestStripeWebhookDuplicateDelivery(t *testing.T) {
	repo := newMemoryBillingRepo()
	app := newWebhookTestApp(repo)

	payload := stripeEventPayload("evt_1", "checkout.session.completed", map[string]interface{}{
		"id":           "cs_1",
		"customer":     map[string]interface{}{"id": "cus_123"},
		"amount_total": 5000,
		"metadata":     map[string]string{"user_id": "1", "plan": "subscription"},
	})

	status, _ := postWebhook(t, app, payload, signPayload(payload, testWebhookSecret, time.Now()))
	require.Equal(t, fiber.StatusOK, status)

	status, body := postWebhook(t, app, payload, signPayload(payload, testWebhookSecret, time.Now()))
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, true, body["duplicate"])

	// Replay must not double-apply.
	assert.Len(t, repo.sales, 1)
	assert.Len(t, repo.events, 1)
}

// blockingSaleRepo parks the first CreateSale call until released, so a test
// can deliver a duplicate while the original delivery is still mid-dispatch.
type blockingSaleRepo struct {
	*memoryBillingRepo
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (b *blockingSaleRepo) Transaction(fn func(billing.Repository) error) error {
	return fn(b)
}

func (b *blockingSaleRepo) CreateSale(sale *models.Sale) error {
	b.once.Do(func() {
		close(b.entered)
		<-b.release
	})
	return b.memoryBillingRepo.CreateSale(sale)
}

func TestStripeWebhookOverlappingDuplicateDelivery(t *testing.T) {
	repo := &blockingSaleRepo{
		memoryBillingRepo: newMemoryBillingRepo(),
		entered:           make(chan struct{}),
		release:           make(chan struct{}),
	}
	app := newWebhookTestApp(repo)

	payload := stripeEventPayload("evt_1", "checkout.session.completed", map[string]interface{}{
		"id":           "cs_1",
		"customer":     map[string]interface{}{"id": "cus_123"},
		"amount_total": 5000,
		"metadata":     map[string]string{"user_id": "1", "plan": "subscription"},
	})

	firstStatus := make(chan int, 1)
	go func() {
		req := httptest.NewRequest("POST", "/webhooks/stripe", bytes.NewReader(payload))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Stripe-Signature", signPayload(payload, testWebhookSecret, time.Now()))
		resp, err := app.Test(req, -1)
		if err != nil {
			firstStatus <- 0
			return
		}
		resp.Body.Close()
		firstStatus <- resp.StatusCode
	}()

	// Wait until the first delivery is inside the sale write, holding an
	// unmarked ledger row, then send the same event again.
	<-repo.entered
	status, body := postWebhook(t, app, payload, signPayload(payload, testWebhookSecret, time.Now()))
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, true, body["duplicate"])

	close(repo.release)
	assert.Equal(t, fiber.StatusOK, <-firstStatus)

	// Exactly one ledger row and one sale, whichever delivery raced ahead.
	require.Len(t, repo.events, 1)
	assert.NotNil(t, repo.events[0].ProcessedAt)
	assert.Len(t, repo.sales, 1)
	assert.Len(t, repo.licenses, 1)
}

func TestStripeWebhookMissingMetadata(t *testing.T) {
	repo := newMemoryBillingRepo()
	app := newWebhookTestApp(repo)

	payload := stripeEventPayload("evt_1", "checkout.session.completed", map[string]interface{}{
		"id":           "cs_1",
		"amount_total": 5000,
		"metadata":     map[string]string{},
	})

	status, body := postWebhook(t, app, payload, signPayload(payload, testWebhookSecret, time.Now()))
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "missing_metadata", body["error"])

	// The ledger row stays behind with the failure recorded.
	require.Len(t, repo.events, 1)
	assert.NotEmpty(t, repo.events[0].ProcessingError)
	assert.Empty(t, repo.sales)
}

func TestStripeWebhookUnknownEventTypeAccepted(t *testing.T) {
	repo := newMemoryBillingRepo()
	app := newWebhookTestApp(repo)

	payload := stripeEventPayload("evt_9", "invoice.payment_succeeded", map[string]interface{}{
		"id": "in_1",
	})

	status, body := postWebhook(t, app, payload, signPayload(payload, testWebhookSecret, time.Now()))
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, true, body["received"])

	require.Len(t, repo.events, 1)
	assert.NotNil(t, repo.events[0].ProcessedAt)
	assert.Empty(t, repo.sales)
}

func TestStripeWebhookSubscriptionDeleted(t *testing.T) {
	repo := newMemoryBillingRepo()
	repo.licenses = append(repo.licenses, &models.License{
		ID:               1,
		UserID:           1,
		StripeCustomerID: "cus_123",
		LicenseType:      models.LicenseTypeSubscription,
		ExpiresAt:        time.Now().Add(20 * 24 * time.Hour),
	})
	app := newWebhookTestApp(repo)

	payload := stripeEventPayload("evt_2", "customer.subscription.deleted", map[string]interface{}{
		"id":       "sub_1",
		"customer": map[string]interface{}{"id": "cus_123"},
	})

	status, _ := postWebhook(t, app, payload, signPayload(payload, testWebhookSecret, time.Now()))
	require.Equal(t, fiber.StatusOK, status)

	license := repo.licenses[0]
	assert.True(t, license.IsCanceled)
	assert.WithinDuration(t, time.Now(), license.ExpiresAt, time.Minute)
}
