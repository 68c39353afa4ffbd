package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/http/httptest"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jobmetrics "github.com/odyssey-erp/backoffice/internal/jobs"
	"github.com/odyssey-erp/backoffice/internal/quotations"
	"github.com/odyssey-erp/backoffice/internal/rbac"
	"github.com/odyssey-erp/backoffice/internal/shared"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type recordingMailer struct {
	sent []Message
	err  error
}

func (m *recordingMailer) Send(_ context.Context, msg Message) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func samplePayload() QuotationEmailPayload {
	return QuotationEmailPayload{
		QuotationID: 12,
		Number:      "00012",
		Recipient:   "compras@santaana.co",
		ClientName:  "Clinica Santa Ana",
		Total:       decimal.RequireFromString("1234567.5"),
		Currency:    "COP",
	}
}

func TestRenderQuotationEmail(t *testing.T) {
	msg := RenderQuotationEmail(samplePayload(), Sender{Name: "Redes Andinas", Email: "ventas@redes.co"})

	assert.Equal(t, "compras@santaana.co", msg.To)
	assert.Equal(t, "Cotización 00012 - Redes Andinas", msg.Subject)
	assert.Contains(t, msg.Body, "Hola Clinica Santa Ana")
	assert.Contains(t, msg.Body, "COP")
	assert.Contains(t, msg.Body, "567,50")
	assert.Contains(t, msg.Body, "ventas@redes.co")
}

func TestQuotationEmailJobSends(t *testing.T) {
	mailer := &recordingMailer{}
	job := NewQuotationEmailJob(mailer, Sender{Name: "Redes Andinas"}, discard, jobmetrics.NewMetrics(prometheus.NewRegistry()))

	task, err := NewQuotationEmailTask(samplePayload())
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "compras@santaana.co", mailer.sent[0].To)
}

func TestQuotationEmailJobErrors(t *testing.T) {
	mailer := &recordingMailer{err: errors.New("relay down")}
	job := NewQuotationEmailJob(mailer, Sender{}, discard, nil)

	err := job.Handle(context.Background(), asynq.NewTask(TaskQuotationSendEmail, []byte("{not json")))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	task, err := NewQuotationEmailTask(samplePayload())
	require.NoError(t, err)
	err = job.Handle(context.Background(), task)
	require.Error(t, err)
	assert.NotErrorIs(t, err, asynq.SkipRetry)

	_, err = NewQuotationEmailTask(QuotationEmailPayload{Number: "00013"})
	assert.Error(t, err)
}

type fakeRefresher struct {
	days    []time.Time
	changed int
	err     error
}

func (f *fakeRefresher) RefreshOverdue(_ context.Context, today time.Time) (int, error) {
	f.days = append(f.days, today)
	return f.changed, f.err
}

func TestRefreshOverdueJob(t *testing.T) {
	refresher := &fakeRefresher{changed: 2}
	job := NewRefreshOverdueJob(refresher, discard, nil)
	fixed := time.Date(2025, 3, 14, 1, 0, 0, 0, time.UTC)
	job.clock = func() time.Time { return fixed }

	task, err := NewTaskByName(TaskPayablesRefreshOverdue)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))

	scheduled := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	task, err = NewRefreshOverdueTask(scheduled)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))

	require.Len(t, refresher.days, 2)
	assert.True(t, refresher.days[0].Equal(fixed))
	assert.True(t, refresher.days[1].Equal(scheduled))

	refresher.err = errors.New("db down")
	assert.Error(t, job.Handle(context.Background(), task))

	_, err = NewTaskByName("reports:nope")
	assert.Error(t, err)
}

type fakeEnqueuer struct {
	tasks []*asynq.Task
	err   error
}

func (f *fakeEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.tasks = append(f.tasks, task)
	return &asynq.TaskInfo{Type: task.Type(), Queue: QueueDefault}, nil
}

func TestClientNotifyQuotationSent(t *testing.T) {
	q := &fakeEnqueuer{}
	client := &Client{client: q}

	err := client.NotifyQuotationSent(context.Background(), quotations.EmailRequest{
		QuotationID: 12, Number: "00012", Recipient: "compras@santaana.co",
		ClientName: "Clinica Santa Ana", Total: decimal.NewFromInt(635), Currency: "COP",
	})
	require.NoError(t, err)
	require.Len(t, q.tasks, 1)
	assert.Equal(t, TaskQuotationSendEmail, q.tasks[0].Type())

	var payload QuotationEmailPayload
	require.NoError(t, json.Unmarshal(q.tasks[0].Payload(), &payload))
	assert.Equal(t, "00012", payload.Number)
	assert.True(t, payload.Total.Equal(decimal.NewFromInt(635)))

	q.err = errors.New("redis down")
	assert.Error(t, client.NotifyQuotationSent(context.Background(), quotations.EmailRequest{Number: "1", Recipient: "a@b.co"}))
	assert.NoError(t, client.Close())
}

func TestSMTPMailerComposes(t *testing.T) {
	mailer := NewSMTPMailer(SMTPConfig{Host: "127.0.0.1", Port: 1025, From: "no-reply@backoffice.local"})
	var (
		gotAddr string
		gotAuth smtp.Auth
		gotTo   []string
		gotMsg  string
	)
	mailer.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotAuth, gotTo, gotMsg = addr, a, to, string(msg)
		return nil
	}

	require.NoError(t, mailer.Send(context.Background(), Message{To: "a@b.co", Subject: "Hola", Body: "linea 1\nlinea 2"}))
	assert.Equal(t, "127.0.0.1:1025", gotAddr)
	assert.Nil(t, gotAuth)
	assert.Equal(t, []string{"a@b.co"}, gotTo)
	assert.Contains(t, gotMsg, "Subject: Hola\r\n")
	assert.Contains(t, gotMsg, "\r\n\r\nlinea 1\r\nlinea 2")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, mailer.Send(ctx, Message{To: "a@b.co"}), context.Canceled)
}

func TestSMTPMailerEncodesNonASCIISubject(t *testing.T) {
	mailer := NewSMTPMailer(SMTPConfig{Host: "127.0.0.1", Port: 1025, From: "no-reply@backoffice.local"})
	var gotMsg string
	mailer.send = func(_ string, _ smtp.Auth, _ string, _ []string, msg []byte) error {
		gotMsg = string(msg)
		return nil
	}

	subject := "Cotización 00012 - Redes Andinas"
	require.NoError(t, mailer.Send(context.Background(), Message{To: "a@b.co", Subject: subject, Body: "Total: 567,50"}))

	header, _, ok := strings.Cut(gotMsg, "\r\n\r\n")
	require.True(t, ok)
	var subjectLine string
	for _, line := range strings.Split(header, "\r\n") {
		if value, found := strings.CutPrefix(line, "Subject: "); found {
			subjectLine = value
		}
	}
	require.NotEmpty(t, subjectLine)
	assert.True(t, strings.HasPrefix(subjectLine, "=?utf-8?q?"), subjectLine)
	for _, r := range header {
		require.Less(t, r, rune(128), "header must be 7-bit")
	}

	decoded, err := new(mime.WordDecoder).DecodeHeader(subjectLine)
	require.NoError(t, err)
	assert.Equal(t, subject, decoded)
}

type fakeInspector struct {
	info *asynq.QueueInfo
	err  error
}

func (f fakeInspector) GetQueueInfo(string) (*asynq.QueueInfo, error) {
	return f.info, f.err
}

func healthRouter(inspector QueueInspector, role string) chi.Router {
	h := NewHandler(inspector, discard, rbac.Middleware{Service: rbac.NewService(nil), Logger: discard})
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := shared.ContextWithPrincipal(req.Context(), shared.Principal{UserID: 1, Role: role})
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	h.MountRoutes(r)
	return r
}

func TestHealthHandler(t *testing.T) {
	get := func(r chi.Router) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
		return rec
	}

	rec := get(healthRouter(fakeInspector{info: &asynq.QueueInfo{Queue: QueueDefault, Pending: 4, Retry: 1}}, shared.RoleAdmin))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"pending":4`)
	assert.Contains(t, rec.Body.String(), `"retry":1`)

	rec = get(healthRouter(fakeInspector{info: &asynq.QueueInfo{}}, shared.RoleUser))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = get(healthRouter(fakeInspector{err: errors.New("redis down")}, shared.RoleAdmin))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

type fakePruner struct {
	olderThan time.Duration
	err       error
}

func (f *fakePruner) Cleanup(_ context.Context, olderThan time.Duration) (int64, error) {
	f.olderThan = olderThan
	return 7, f.err
}

func TestIdempotencyCleanupJob(t *testing.T) {
	pruner := &fakePruner{}
	job := NewIdempotencyCleanupJob(pruner, discard, nil)

	task, err := NewTaskByName(TaskIdempotencyCleanup)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	assert.Equal(t, IdempotencyRetention, pruner.olderThan)

	pruner.err = errors.New("db down")
	assert.Error(t, job.Handle(context.Background(), task))
}
