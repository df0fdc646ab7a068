package issuer

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"facturabot/pkg/models"
)

// --- test doubles -----------------------------------------------------------

type fakeLedger struct {
	mu        sync.Mutex
	appended  []models.LedgerRow
	emitted   map[string]models.AuthorizationResult
	links     map[string]string
	errored   map[string]string
	appendErr error
	updateErr error
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		emitted: make(map[string]models.AuthorizationResult),
		links:   make(map[string]string),
		errored: make(map[string]string),
	}
}

func (f *fakeLedger) AppendPending(_ context.Context, row models.LedgerRow) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.appendErr != nil {
		return f.appendErr
	}
	f.appended = append(f.appended, row)
	return nil
}

func (f *fakeLedger) MarkEmitted(_ context.Context, requestID string, res models.AuthorizationResult, docLink string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	f.emitted[requestID] = res
	f.links[requestID] = docLink
	return nil
}

func (f *fakeLedger) MarkError(_ context.Context, requestID, cause string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	f.errored[requestID] = cause
	return nil
}

type fakeAuthorizer struct {
	res   models.AuthorizationResult
	err   error
	delay time.Duration
	calls int
}

func (f *fakeAuthorizer) Authorize(ctx context.Context, _ models.InvoiceRequest) (models.AuthorizationResult, error) {
	f.calls++
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return models.AuthorizationResult{}, ctx.Err()
		}
	}
	return f.res, f.err
}

type fakeRenderer struct {
	data  []byte
	err   error
	calls int
}

func (f *fakeRenderer) Render(models.InvoiceRequest, models.AuthorizationResult) ([]byte, error) {
	f.calls++
	return f.data, f.err
}

type fakeArchiver struct {
	link  string
	err   error
	calls int
}

func (f *fakeArchiver) Upload(context.Context, string, []byte) (string, error) {
	f.calls++
	return f.link, f.err
}

type fakeNotifier struct {
	mu    sync.Mutex
	texts []string
	docs  []string
}

func (f *fakeNotifier) SendText(_ context.Context, _ int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, text)
	return nil
}

func (f *fakeNotifier) SendDocument(_ context.Context, _ int64, name string, _ []byte, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs = append(f.docs, name)
	return nil
}

func (f *fakeNotifier) all() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return strings.Join(f.texts, "\n")
}

type fixture struct {
	ledger   *fakeLedger
	auth     *fakeAuthorizer
	renderer *fakeRenderer
	archiver *fakeArchiver
	notifier *fakeNotifier
	orch     *Orchestrator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		ledger: newFakeLedger(),
		auth: &fakeAuthorizer{res: models.AuthorizationResult{
			CAE:           "75123456789012",
			CAEExpiry:     time.Date(2026, 9, 8, 0, 0, 0, 0, time.UTC),
			VoucherNumber: 42,
		}},
		renderer: &fakeRenderer{data: []byte("%PDF-fake")},
		archiver: &fakeArchiver{link: "https://drive.example.com/d/abc"},
		notifier: &fakeNotifier{},
	}

	opts := DefaultOptions()
	opts.SalesPoint = 3
	f.orch = New(f.ledger, f.auth, f.renderer, f.archiver, f.notifier, nil, opts)
	f.orch.newID = func() string { return "req-fixed" }
	f.orch.now = func() time.Time { return time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC) }
	return f
}

const validCommand = "Juan Perez | DNI 12345678 | Servicio de diseño | 5000"

// --- scenarios --------------------------------------------------------------

func TestIssueHappyPath(t *testing.T) {
	f := newFixture(t)

	err := f.orch.Issue(context.Background(), 7, validCommand)
	require.NoError(t, err)

	// exactly one PENDING row, then exactly that row emitted
	require.Len(t, f.ledger.appended, 1)
	row := f.ledger.appended[0]
	assert.Equal(t, "req-fixed", row.RequestID)
	assert.Equal(t, models.StatusPending, row.Status)
	assert.Equal(t, "Juan Perez", row.PayerName)
	assert.Equal(t, 3, row.SalesPoint)
	assert.Equal(t, time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC), row.Date)

	require.Len(t, f.ledger.emitted, 1)
	res := f.ledger.emitted["req-fixed"]
	assert.Equal(t, int64(42), res.VoucherNumber)
	assert.Equal(t, "75123456789012", res.CAE)
	assert.Equal(t, "https://drive.example.com/d/abc", f.ledger.links["req-fixed"])
	assert.Empty(t, f.ledger.errored)

	assert.Equal(t, 1, f.auth.calls)
	assert.Equal(t, 1, f.renderer.calls)
	assert.Equal(t, 1, f.archiver.calls)
	assert.Contains(t, f.notifier.all(), "CAE 75123456789012")
	assert.Contains(t, f.notifier.all(), "Listo")
	require.Len(t, f.notifier.docs, 1)
	assert.Equal(t, "factura_0003_00000042.pdf", f.notifier.docs[0])
}

func TestIssueMalformedCommandCreatesNoRow(t *testing.T) {
	f := newFixture(t)

	err := f.orch.Issue(context.Background(), 7, "Juan Perez | DNI 12345678 | 5000")
	assert.ErrorIs(t, err, ErrMalformedCommand)

	assert.Empty(t, f.ledger.appended, "no ledger row for a malformed command")
	assert.Zero(t, f.auth.calls)
	assert.Contains(t, f.notifier.all(), "Formato")
}

func TestIssueLedgerAppendFailureStopsBeforeAuthority(t *testing.T) {
	f := newFixture(t)
	f.ledger.appendErr = errors.New("quota exceeded")

	err := f.orch.Issue(context.Background(), 7, validCommand)
	assert.ErrorIs(t, err, ErrLedgerWrite)

	assert.Zero(t, f.auth.calls, "authority must not be touched without a PENDING row")
	assert.Zero(t, f.renderer.calls)
	assert.Contains(t, f.notifier.all(), "quota exceeded")
}

func TestIssueAuthorizationFailureMarksRowError(t *testing.T) {
	f := newFixture(t)
	f.auth.err = errors.New("campo DocNro invalido")

	err := f.orch.Issue(context.Background(), 7, validCommand)
	assert.ErrorIs(t, err, ErrAuthorization)

	require.Len(t, f.ledger.appended, 1)
	cause, ok := f.ledger.errored["req-fixed"]
	require.True(t, ok, "PENDING row must be marked ERROR")
	assert.NotEmpty(t, cause)
	assert.Empty(t, f.ledger.emitted)

	assert.Zero(t, f.renderer.calls, "no render after a failed authorization")
	assert.Zero(t, f.archiver.calls, "no archive after a failed authorization")
}

func TestIssueAuthorizationTimeout(t *testing.T) {
	f := newFixture(t)
	f.orch.opts.AuthTimeout = 30 * time.Millisecond
	f.auth.delay = time.Second

	err := f.orch.Issue(context.Background(), 7, validCommand)
	assert.ErrorIs(t, err, ErrAuthorization)

	cause := f.ledger.errored["req-fixed"]
	assert.NotEmpty(t, cause, "timeout must leave a truncated cause on the row")
	assert.Zero(t, f.renderer.calls)
	assert.Zero(t, f.archiver.calls)
}

func TestIssueAuthorizationErrorCauseIsTruncated(t *testing.T) {
	f := newFixture(t)
	f.auth.err = errors.New(strings.Repeat("x", 2000))

	err := f.orch.Issue(context.Background(), 7, validCommand)
	assert.ErrorIs(t, err, ErrAuthorization)

	cause := f.ledger.errored["req-fixed"]
	assert.LessOrEqual(t, len(cause), 500)
	assert.True(t, strings.HasSuffix(cause, "..."))
}

func TestIssueRenderFailureKeepsRowEmitted(t *testing.T) {
	f := newFixture(t)
	f.renderer.err = errors.New("font missing")

	err := f.orch.Issue(context.Background(), 7, validCommand)
	require.NoError(t, err, "render failure is non-fatal")

	require.Len(t, f.ledger.emitted, 1, "row still reconciled to EMITTED")
	assert.Empty(t, f.ledger.errored, "authorized invoice never reverts to ERROR")
	assert.Zero(t, f.archiver.calls, "nothing to archive without a document")
	assert.Contains(t, f.notifier.all(), "no pude generar el PDF")
}

func TestIssueArchiveFailureIsSoftWarning(t *testing.T) {
	f := newFixture(t)
	f.archiver.err = errors.New("storage unavailable")

	err := f.orch.Issue(context.Background(), 7, validCommand)
	require.NoError(t, err)

	require.Len(t, f.ledger.emitted, 1)
	assert.Empty(t, f.ledger.links["req-fixed"], "no link recorded when archiving failed")
	assert.Contains(t, f.notifier.all(), "archivar")
	assert.Contains(t, f.notifier.all(), "Listo")
}

func TestIssueWithoutArchiverSkipsUpload(t *testing.T) {
	f := newFixture(t)
	f.orch.archiver = nil

	err := f.orch.Issue(context.Background(), 7, validCommand)
	require.NoError(t, err)
	assert.Zero(t, f.archiver.calls)
	require.Len(t, f.ledger.emitted, 1)
}

func TestIssueReconcileFailureStillReportsSuccess(t *testing.T) {
	f := newFixture(t)
	f.ledger.updateErr = errors.New("row vanished")

	err := f.orch.Issue(context.Background(), 7, validCommand)
	assert.ErrorIs(t, err, ErrReconcile)

	assert.Contains(t, f.notifier.all(), "CAE 75123456789012")
	assert.Contains(t, f.notifier.all(), "revisala manualmente")
}

func TestHandleMessageRecoversFromPanic(t *testing.T) {
	f := newFixture(t)
	f.orch.authorizer = panicAuthorizer{}

	assert.NotPanics(t, func() {
		f.orch.HandleMessage(context.Background(), 7, validCommand)
	})

	cause := f.ledger.errored["req-fixed"]
	assert.Contains(t, cause, "internal failure")
	assert.Contains(t, f.notifier.all(), "error interno")
}

type panicAuthorizer struct{}

func (panicAuthorizer) Authorize(context.Context, models.InvoiceRequest) (models.AuthorizationResult, error) {
	panic("boom")
}

func TestIssueWatchdogSendsInterimNotice(t *testing.T) {
	f := newFixture(t)
	f.orch.opts.WatchdogAfter = 20 * time.Millisecond
	f.orch.opts.AuthTimeout = 500 * time.Millisecond
	f.auth.delay = 100 * time.Millisecond

	err := f.orch.Issue(context.Background(), 7, validCommand)
	require.NoError(t, err, "watchdog is observational, the pipeline still completes")

	assert.Contains(t, f.notifier.all(), "Sigo trabajando")
	require.Len(t, f.ledger.emitted, 1)
}

func TestIssueKeywordCommandDerivesTotals(t *testing.T) {
	f := newFixture(t)

	err := f.orch.Issue(context.Background(), 7, "dni 12345678 cantidad 2 precio 1500,50 detalle sesion kinesiologia")
	require.NoError(t, err)

	require.Len(t, f.ledger.appended, 1)
	row := f.ledger.appended[0]
	assert.Equal(t, "3001", row.Total.String())
	assert.Equal(t, models.DocDNI, row.DocCategory)
}

func TestIssueInvalidReceptorDowngradedBeforeAuthority(t *testing.T) {
	f := newFixture(t)

	// 6-digit DNI: too short, must go out as consumidor final / "0"
	err := f.orch.Issue(context.Background(), 7, "Juan Perez | DNI 123456 | Servicio | 5000")
	require.NoError(t, err)

	require.Len(t, f.ledger.appended, 1)
	row := f.ledger.appended[0]
	assert.Equal(t, models.DocConsumidorFinal, row.DocCategory)
	assert.Equal(t, "0", row.DocNumber)
}

type fakeLookup struct {
	names map[string]string
	err   error
}

func (f *fakeLookup) Lookup(_ context.Context, doc string) (string, bool, error) {
	if f.err != nil {
		return "", false, f.err
	}
	name, ok := f.names[doc]
	return name, ok, nil
}

func TestIssueEnrichesMissingNameFromLookup(t *testing.T) {
	f := newFixture(t)
	f.orch.lookup = &fakeLookup{names: map[string]string{"12345678": "Juan Perez"}}

	err := f.orch.Issue(context.Background(), 7, "dni 12345678 precio 500")
	require.NoError(t, err)

	require.Len(t, f.ledger.appended, 1)
	assert.Equal(t, "Juan Perez", f.ledger.appended[0].PayerName)
}

func TestIssueLookupFailureIsNonFatal(t *testing.T) {
	f := newFixture(t)
	f.orch.lookup = &fakeLookup{err: errors.New("sheet offline")}

	err := f.orch.Issue(context.Background(), 7, "dni 12345678 precio 500")
	require.NoError(t, err)

	require.Len(t, f.ledger.appended, 1)
	assert.Empty(t, f.ledger.appended[0].PayerName)
}

func TestIssueLookupDoesNotOverrideParsedName(t *testing.T) {
	f := newFixture(t)
	f.orch.lookup = &fakeLookup{names: map[string]string{"12345678": "Otro Nombre"}}

	err := f.orch.Issue(context.Background(), 7, validCommand)
	require.NoError(t, err)

	assert.Equal(t, "Juan Perez", f.ledger.appended[0].PayerName)
}

func TestTruncateCause(t *testing.T) {
	assert.Empty(t, truncateCause(nil))
	assert.Equal(t, "short", truncateCause(errors.New("short")))

	long := truncateCause(errors.New(strings.Repeat("a", 1000)))
	assert.Len(t, long, 500)
	assert.True(t, strings.HasSuffix(long, "..."))
}
