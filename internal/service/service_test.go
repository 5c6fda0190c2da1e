package service

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/paperplay/sticker-service/internal/clock"
	"github.com/paperplay/sticker-service/internal/config"
	"github.com/paperplay/sticker-service/internal/domain"
	"github.com/paperplay/sticker-service/internal/events"
	"github.com/paperplay/sticker-service/internal/observability"
	"github.com/paperplay/sticker-service/internal/repository"
	"github.com/paperplay/sticker-service/internal/storage"
)

var epoch = time.Date(2025, 2, 14, 9, 0, 0, 0, time.UTC)

type harness struct {
	clock   *clock.FakeClock
	tickets *repository.MemoryTicketRepository
	orders  *repository.MemoryOrderRepository
	store   *storage.LocalStore
	ticket  *TicketService
	binder  *BinderService
	order   *OrderService

	mu     sync.Mutex
	events []events.Event
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store, err := storage.NewLocalStore(t.TempDir(), "http://assets.test", 1<<20)
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	h := &harness{
		clock:   clock.Fake(epoch),
		tickets: repository.NewMemoryTicketRepository(),
		orders:  repository.NewMemoryOrderRepository(),
		store:   store,
	}
	dispatcher := events.NewInMemoryDispatcher()
	for _, et := range events.AllEventTypes {
		dispatcher.Subscribe(et, func(_ context.Context, e events.Event) error {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.events = append(h.events, e)
			return nil
		})
	}
	deps := TicketDependencies{
		TicketRepo: h.tickets,
		OrderRepo:  h.orders,
		Store:      store,
		Clock:      h.clock,
		Dispatcher: dispatcher,
		Metrics:    observability.NewMetrics(),
		Issue:      config.IssueConfig{PublicBaseURL: "https://stickers.test", MaxBatchSize: 50},
	}
	h.ticket = NewTicketService(deps)
	h.binder = NewBinderService(deps)
	h.order = NewOrderService(deps)
	return h
}

func (h *harness) eventTypes() []events.EventType {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]events.EventType, 0, len(h.events))
	for _, e := range h.events {
		out = append(out, e.Type)
	}
	return out
}

func countFiles(t *testing.T, root string) int {
	t.Helper()
	n := 0
	err := filepath.WalkDir(root, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			n++
		}
		return nil
	})
	if err != nil {
		t.Fatalf("walk: %v", err)
	}
	return n
}

func videoUpload(body string) Upload {
	return Upload{FileName: "clip.mp4", ContentType: "video/mp4", Size: int64(len(body)), Body: strings.NewReader(body)}
}

type failingStore struct{}

func (failingStore) Put(context.Context, storage.PutInput) (storage.Object, error) {
	return storage.Object{}, errors.New("bucket unavailable")
}

func (failingStore) Delete(context.Context, string) error { return nil }

func TestIssueBatchWithPrefix(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	batch, err := h.ticket.IssueBatch(ctx, 5, "820001")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if batch.ID != "820001" || len(batch.Tickets) != 5 {
		t.Fatalf("unexpected batch: %+v", batch)
	}
	seen := map[string]bool{}
	for i, ticket := range batch.Tickets {
		want := "820001-" + string(rune('1'+i))
		if ticket.Code != want {
			t.Fatalf("ticket %d: got %s want %s", i, ticket.Code, want)
		}
		if ticket.BatchID == nil || *ticket.BatchID != "820001" || ticket.IsBound() {
			t.Fatalf("unexpected ticket: %+v", ticket)
		}
		seen[ticket.Code] = true
	}
	if len(seen) != 5 {
		t.Fatalf("codes not distinct: %v", seen)
	}
	stored, _ := h.ticket.ListTickets(ctx, repository.TicketFilter{})
	if len(stored) != 5 {
		t.Fatalf("expected 5 stored tickets, got %d", len(stored))
	}
}

func TestIssueBatchDefaultsAndLimits(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	batch, err := h.ticket.IssueBatch(ctx, 2, "")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	want := defaultBatchID(epoch)
	if batch.ID != want || len(want) != 6 || batch.Tickets[0].Code != want+"-1" {
		t.Fatalf("unexpected default batch id %q (want %q)", batch.ID, want)
	}

	for _, count := range []int{0, -1, 51} {
		if _, err := h.ticket.IssueBatch(ctx, count, "x"); !errors.Is(err, domain.ErrInvalidInput) {
			t.Fatalf("count %d: expected invalid input, got %v", count, err)
		}
	}
}

func TestIssueBatchFailsFast(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if _, err := h.ticket.CreateTicket(ctx, "777-2"); err != nil {
		t.Fatalf("create: %v", err)
	}
	_, err := h.ticket.IssueBatch(ctx, 3, "777")
	if !domain.IsDuplicateCode(err) {
		t.Fatalf("expected duplicate code, got %v", err)
	}
	var te *domain.TicketError
	if !errors.As(err, &te) || te.Code != "777-2" {
		t.Fatalf("error should name the conflicting code: %v", err)
	}
	if ok, _ := h.ticket.Exists(ctx, "777-1"); ok {
		t.Fatal("partial batch persisted")
	}
}

func TestCreateTicketDuplicate(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if _, err := h.ticket.CreateTicket(ctx, "X"); err != nil {
		t.Fatalf("first create: %v", err)
	}
	if _, err := h.ticket.CreateTicket(ctx, "X"); !domain.IsDuplicateCode(err) {
		t.Fatalf("expected duplicate code, got %v", err)
	}
}

func TestCreateTicketGeneratesCode(t *testing.T) {
	h := newHarness(t)
	ticket, err := h.ticket.CreateTicket(context.Background(), "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(ticket.Code) != 8 {
		t.Fatalf("unexpected code length: %q", ticket.Code)
	}
	for _, r := range ticket.Code {
		if !strings.ContainsRune(codeAlphabet, r) {
			t.Fatalf("code %q has character outside alphabet", ticket.Code)
		}
	}
	if h.ticket.ShareLink(ticket.Code) != "https://stickers.test/"+ticket.Code {
		t.Fatalf("unexpected link %s", h.ticket.ShareLink(ticket.Code))
	}
}

func TestCreateTicketRejectsUnsafeCodes(t *testing.T) {
	h := newHarness(t)
	for _, code := range []string{"a/b", "with space", strings.Repeat("x", 65)} {
		if _, err := h.ticket.CreateTicket(context.Background(), code); !errors.Is(err, domain.ErrInvalidInput) {
			t.Fatalf("%q: expected invalid input, got %v", code, err)
		}
	}
}

func TestDeleteTicketTwice(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, _ = h.ticket.CreateTicket(ctx, "gone")

	if err := h.ticket.DeleteTicket(ctx, "gone"); err != nil {
		t.Fatalf("first delete: %v", err)
	}
	if err := h.ticket.DeleteTicket(ctx, "gone"); err != nil {
		t.Fatalf("second delete: %v", err)
	}
	if _, err := h.ticket.GetTicket(ctx, "gone"); !domain.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestDeleteWhereBoundKeepsUnbound(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	if _, err := h.ticket.IssueBatch(ctx, 4, "d"); err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := h.binder.BindVideo(ctx, "d-2", videoUpload("frames"), BindOptions{}); err != nil {
		t.Fatalf("bind: %v", err)
	}

	n, err := h.ticket.DeleteWhere(ctx, domain.PredicateBound)
	if err != nil || n != 1 {
		t.Fatalf("delete where: n=%d err=%v", n, err)
	}
	for _, code := range []string{"d-1", "d-3", "d-4"} {
		if ok, _ := h.ticket.Exists(ctx, code); !ok {
			t.Fatalf("unbound %s was removed", code)
		}
	}
	if countFiles(t, h.store.Root()) != 0 {
		t.Fatal("bound ticket's video not removed")
	}
}

func TestBindTwiceLeavesStateUnchanged(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, _ = h.ticket.CreateTicket(ctx, "once")

	first, err := h.binder.BindVideo(ctx, "once", videoUpload("first"), BindOptions{})
	if err != nil {
		t.Fatalf("bind: %v", err)
	}
	_, err = h.binder.BindVideo(ctx, "once", videoUpload("second"), BindOptions{})
	if !domain.IsAlreadyBound(err) {
		t.Fatalf("expected already bound, got %v", err)
	}
	letter := domain.Content{Kind: domain.ContentKindLetter, Letter: &domain.Letter{SenderName: "A", Body: "B"}}
	if _, err := h.binder.BindContent(ctx, "once", letter, BindOptions{}); !domain.IsAlreadyBound(err) {
		t.Fatalf("expected already bound, got %v", err)
	}

	after, _ := h.ticket.GetTicket(ctx, "once")
	if after.Content.Video.StorageKey != first.Content.Video.StorageKey {
		t.Fatal("content changed by rejected bind")
	}
	if countFiles(t, h.store.Root()) != 1 {
		t.Fatalf("expected only the first upload on disk, got %d", countFiles(t, h.store.Root()))
	}
}

func TestBindVideoUploadFailureLeavesUnbound(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, _ = h.ticket.CreateTicket(ctx, "fail")
	binder := NewBinderService(TicketDependencies{TicketRepo: h.tickets, Store: failingStore{}, Clock: h.clock})

	_, err := binder.BindVideo(ctx, "fail", videoUpload("bytes"), BindOptions{})
	if !domain.IsUploadFailed(err) {
		t.Fatalf("expected upload failed, got %v", err)
	}
	bound, err := h.ticket.IsBound(ctx, "fail")
	if err != nil || bound {
		t.Fatalf("ticket should stay unbound: bound=%v err=%v", bound, err)
	}
}

func TestBindVideoRejectsMissingTicketBeforeUpload(t *testing.T) {
	h := newHarness(t)
	_, err := h.binder.BindVideo(context.Background(), "nope", videoUpload("bytes"), BindOptions{})
	if !domain.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	if countFiles(t, h.store.Root()) != 0 {
		t.Fatal("upload happened for a missing ticket")
	}
}

// racingRepo binds a competing payload between the precheck and the bind.
type racingRepo struct {
	*repository.MemoryTicketRepository
	once sync.Once
}

func (r *racingRepo) BindContent(ctx context.Context, code string, b repository.ContentBinding) (*domain.Ticket, error) {
	r.once.Do(func() {
		competing := repository.ContentBinding{
			Content: domain.Content{Kind: domain.ContentKindLetter, Letter: &domain.Letter{SenderName: "other", Body: "won"}},
			Visible: true,
			At:      b.At,
		}
		_, _ = r.MemoryTicketRepository.BindContent(ctx, code, competing)
	})
	return r.MemoryTicketRepository.BindContent(ctx, code, b)
}

func TestBindVideoLostRaceRemovesUpload(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	repo := &racingRepo{MemoryTicketRepository: h.tickets}
	binder := NewBinderService(TicketDependencies{TicketRepo: repo, Store: h.store, Clock: h.clock})
	_, _ = h.ticket.CreateTicket(ctx, "race")

	_, err := binder.BindVideo(ctx, "race", videoUpload("late"), BindOptions{})
	if !domain.IsAlreadyBound(err) {
		t.Fatalf("expected already bound, got %v", err)
	}
	if countFiles(t, h.store.Root()) != 0 {
		t.Fatal("losing upload left on disk")
	}
	ticket, _ := h.ticket.GetTicket(ctx, "race")
	if ticket.Content.Kind != domain.ContentKindLetter {
		t.Fatalf("winner overwritten: %+v", ticket.Content)
	}
}

func TestConcurrentCreateTicketHasOneWinner(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	const n = 24

	var wg sync.WaitGroup
	errs := make([]error, n)
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, errs[i] = h.ticket.CreateTicket(ctx, "X")
		}(i)
	}
	close(start)
	wg.Wait()

	wins := 0
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case !domain.IsDuplicateCode(err):
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("expected one winner, got %d", wins)
	}
}

func TestConcurrentBindVideoHasOneWinner(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, _ = h.ticket.CreateTicket(ctx, "X")
	const n = 16

	var wg sync.WaitGroup
	results := make([]*domain.Ticket, n)
	errs := make([]error, n)
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			results[i], errs[i] = h.binder.BindVideo(ctx, "X", videoUpload(fmt.Sprintf("clip-%d", i)), BindOptions{})
		}(i)
	}
	close(start)
	wg.Wait()

	var winner *domain.Ticket
	for i, err := range errs {
		switch {
		case err == nil:
			if winner != nil {
				t.Fatal("two binds succeeded")
			}
			winner = results[i]
		case !domain.IsAlreadyBound(err):
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if winner == nil {
		t.Fatal("no bind succeeded")
	}
	stored, _ := h.ticket.GetTicket(ctx, "X")
	if stored.Content.Video.StorageKey != winner.Content.Video.StorageKey {
		t.Fatalf("stored %s, winner %s", stored.Content.Video.StorageKey, winner.Content.Video.StorageKey)
	}
	if got := countFiles(t, h.store.Root()); got != 1 {
		t.Fatalf("losing uploads left on disk: %d files", got)
	}
}

func TestLockedThenReadyScenario(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	if _, err := h.ticket.IssueBatch(ctx, 5, "820001"); err != nil {
		t.Fatalf("issue: %v", err)
	}
	tomorrow := epoch.Add(24 * time.Hour)
	if _, err := h.binder.BindVideo(ctx, "820001-3", videoUpload("surprise"), BindOptions{UnlockAt: &tomorrow}); err != nil {
		t.Fatalf("bind: %v", err)
	}

	status, err := h.ticket.ViewerStatus(ctx, "820001-3")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.State != ViewerLocked || status.Content != nil {
		t.Fatalf("expected locked without content, got %+v", status)
	}
	if status.Countdown == nil || status.Countdown.Days != 1 || status.Remaining != 24*time.Hour {
		t.Fatalf("unexpected countdown: %+v remaining=%s", status.Countdown, status.Remaining)
	}

	h.clock.Advance(24*time.Hour + time.Second)
	status, _ = h.ticket.ViewerStatus(ctx, "820001-3")
	if status.State != ViewerReady || status.Content == nil || status.Content.Video == nil {
		t.Fatalf("expected ready with video, got %+v", status)
	}

	status, _ = h.ticket.ViewerStatus(ctx, "820001-1")
	if status.State != ViewerEmpty {
		t.Fatalf("expected empty, got %s", status.State)
	}
	status, _ = h.ticket.ViewerStatus(ctx, "missing")
	if status.State != ViewerNotFound || status.Code != "missing" {
		t.Fatalf("expected not found, got %+v", status)
	}
}

func TestBindRejectsUnlockBeforeCreation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, _ = h.ticket.CreateTicket(ctx, "early")
	past := epoch.Add(-time.Minute)
	content := domain.Content{Kind: domain.ContentKindLetter, Letter: &domain.Letter{SenderName: "A", Body: "B"}}
	if _, err := h.binder.BindContent(ctx, "early", content, BindOptions{UnlockAt: &past}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestClearContentThenRebind(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, _ = h.ticket.CreateTicket(ctx, "redo")
	hidden := false
	if _, err := h.binder.BindVideo(ctx, "redo", videoUpload("v1"), BindOptions{Visible: &hidden}); err != nil {
		t.Fatalf("bind: %v", err)
	}

	h.clock.Advance(time.Minute)
	if err := h.binder.ClearContent(ctx, "redo"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if err := h.binder.ClearContent(ctx, "redo"); err != nil {
		t.Fatalf("second clear: %v", err)
	}
	if countFiles(t, h.store.Root()) != 0 {
		t.Fatal("cleared video still stored")
	}
	ticket, _ := h.ticket.GetTicket(ctx, "redo")
	if ticket.IsBound() || !ticket.Visible {
		t.Fatalf("ticket not reset: %+v", ticket)
	}
	if _, err := h.binder.BindVideo(ctx, "redo", videoUpload("v2"), BindOptions{}); err != nil {
		t.Fatalf("rebind after clear: %v", err)
	}
	if err := h.binder.ClearContent(ctx, "absent"); !domain.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func assetExists(t *testing.T, h *harness, key string) bool {
	t.Helper()
	_, err := os.Stat(filepath.Join(h.store.Root(), filepath.FromSlash(key)))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("stat %s: %v", key, err)
	}
	return err == nil
}

func TestBindContentCannotAdoptAnotherTicketsAsset(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, _ = h.ticket.CreateTicket(ctx, "900001-1")
	_, _ = h.ticket.CreateTicket(ctx, "900001-2")

	victim, err := h.binder.BindVideo(ctx, "900001-1", videoUpload("precious"), BindOptions{})
	if err != nil {
		t.Fatalf("bind victim: %v", err)
	}
	borrowed := *victim.Content.Video
	bound, err := h.binder.BindContent(ctx, "900001-2", domain.Content{Kind: domain.ContentKindVideo, Video: &borrowed}, BindOptions{})
	if err != nil {
		t.Fatalf("bind external: %v", err)
	}
	if bound.Content.Video.StorageKey != "" || bound.Content.Video.Checksum != "" {
		t.Fatalf("external reference kept ownership fields: %+v", bound.Content.Video)
	}
	if bound.Content.Video.URL != borrowed.URL {
		t.Fatalf("url = %q, want %q", bound.Content.Video.URL, borrowed.URL)
	}

	if err := h.binder.ClearContent(ctx, "900001-2"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if !assetExists(t, h, victim.Content.Video.StorageKey) {
		t.Fatal("clearing one ticket removed another ticket's video")
	}
	after, _ := h.ticket.GetTicket(ctx, "900001-1")
	if !after.IsBound() {
		t.Fatal("victim ticket lost its content")
	}
}

func TestExternalReferenceIsNeverPurged(t *testing.T) {
	tests := []struct {
		name   string
		remove func(h *harness, code string) error
	}{
		{name: "clear", remove: func(h *harness, code string) error {
			return h.binder.ClearContent(context.Background(), code)
		}},
		{name: "delete", remove: func(h *harness, code string) error {
			return h.ticket.DeleteTicket(context.Background(), code)
		}},
		{name: "delete where bound", remove: func(h *harness, _ string) error {
			_, err := h.ticket.DeleteWhere(context.Background(), domain.PredicateBound)
			return err
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			ctx := context.Background()
			obj, err := h.store.Put(ctx, storage.PutInput{Prefix: "videos/elsewhere", FileName: "keep.mp4", Body: strings.NewReader("keep")})
			if err != nil {
				t.Fatalf("put: %v", err)
			}
			_, _ = h.ticket.CreateTicket(ctx, "ext")
			letter := domain.Content{Kind: domain.ContentKindLetter, Letter: &domain.Letter{
				SenderName: "Eve",
				Body:       "hi",
				Image:      &domain.AssetReference{StorageKey: obj.Key, URL: obj.URL, Checksum: obj.Checksum},
			}}
			bound, err := h.binder.BindContent(ctx, "ext", letter, BindOptions{})
			if err != nil {
				t.Fatalf("bind: %v", err)
			}
			if bound.Content.Letter.Image.StorageKey != "" {
				t.Fatalf("image kept storage key %q", bound.Content.Letter.Image.StorageKey)
			}

			if err := tt.remove(h, "ext"); err != nil {
				t.Fatalf("remove: %v", err)
			}
			if !assetExists(t, h, obj.Key) {
				t.Fatal("stored object removed through an external reference")
			}
		})
	}
}

func TestBindLetterWithImage(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, _ = h.ticket.CreateTicket(ctx, "note")

	image := &Upload{FileName: "us.png", ContentType: "image/png", Body: strings.NewReader("png")}
	ticket, err := h.binder.BindLetter(ctx, "note", domain.Letter{SenderName: "Ana", Body: "Hi", Theme: "rose"}, image, BindOptions{})
	if err != nil {
		t.Fatalf("bind letter: %v", err)
	}
	if ticket.Content.Letter.Image == nil || !strings.HasPrefix(ticket.Content.Letter.Image.StorageKey, "letters/note/") {
		t.Fatalf("unexpected image ref: %+v", ticket.Content.Letter.Image)
	}
	if ticket.Content.Letter.Image.Checksum == "" {
		t.Fatal("missing checksum")
	}

	_, err = h.binder.BindLetter(ctx, "note", domain.Letter{SenderName: "", Body: "Hi"}, nil, BindOptions{})
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input for missing sender, got %v", err)
	}
}

func TestBindVideoRejectsWrongMediaType(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, _ = h.ticket.CreateTicket(ctx, "mime")
	up := Upload{FileName: "a.txt", ContentType: "text/plain", Body: strings.NewReader("x")}
	if _, err := h.binder.BindVideo(ctx, "mime", up, BindOptions{}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestComposeLetter(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	unlock := epoch.Add(48 * time.Hour)

	ticket, err := h.binder.ComposeLetter(ctx, domain.Letter{SenderName: "Ana", Body: "Open on our day"}, nil, BindOptions{UnlockAt: &unlock})
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	if !ticket.IsBound() || ticket.Content.Kind != domain.ContentKindLetter || len(ticket.Code) != 8 {
		t.Fatalf("unexpected ticket: %+v", ticket)
	}
	status, _ := h.ticket.ViewerStatus(ctx, ticket.Code)
	if status.State != ViewerLocked || status.Countdown.Days != 2 {
		t.Fatalf("expected 2-day lock, got %+v", status)
	}

	types := h.eventTypes()
	if len(types) != 2 || types[0] != events.EventTicketIssued || types[1] != events.EventContentBound {
		t.Fatalf("unexpected events: %v", types)
	}
}

func TestOperatorPreviewRequiresVisibleAndOpen(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	for _, code := range []string{"shown", "hidden", "locked"} {
		_, _ = h.ticket.CreateTicket(ctx, code)
	}
	hidden := false
	later := epoch.Add(time.Hour)
	_, _ = h.binder.BindVideo(ctx, "shown", videoUpload("a"), BindOptions{})
	_, _ = h.binder.BindVideo(ctx, "hidden", videoUpload("b"), BindOptions{Visible: &hidden})
	_, _ = h.binder.BindVideo(ctx, "locked", videoUpload("c"), BindOptions{UnlockAt: &later})

	cases := []struct {
		code    string
		binding domain.BindingState
		preview bool
	}{
		{"shown", domain.BindingStateBoundOpen, true},
		{"hidden", domain.BindingStateBoundOpen, false},
		{"locked", domain.BindingStateBoundLocked, false},
	}
	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			status, err := h.ticket.OperatorStatus(ctx, tc.code)
			if err != nil {
				t.Fatalf("status: %v", err)
			}
			if status.State != OperatorUsed || status.Binding != tc.binding {
				t.Fatalf("unexpected status: %+v", status)
			}
			if (status.Preview != nil) != tc.preview {
				t.Fatalf("preview=%v want %v", status.Preview != nil, tc.preview)
			}
		})
	}
}

func TestProjectIsMonotonic(t *testing.T) {
	unlock := epoch.Add(90 * time.Minute)
	ticket := &domain.Ticket{
		Code:     "m",
		Content:  &domain.Content{Kind: domain.ContentKindLetter, Letter: &domain.Letter{SenderName: "a", Body: "b"}},
		UnlockAt: &unlock,
		Visible:  true,
	}
	opened := false
	for offset := -2 * time.Hour; offset <= 2*time.Hour; offset += 7 * time.Minute {
		now := unlock.Add(offset)
		state := Project(ticket, now).State
		switch {
		case now.Before(unlock) && state != ViewerLocked:
			t.Fatalf("at %s: expected locked, got %s", offset, state)
		case !now.Before(unlock) && state != ViewerReady:
			t.Fatalf("at %s: expected ready, got %s", offset, state)
		}
		if opened && state != ViewerReady {
			t.Fatalf("flapped back to %s at %s", state, offset)
		}
		opened = state == ViewerReady
	}
	if Project(ticket, unlock).State != ViewerReady {
		t.Fatal("expected ready exactly at unlock time")
	}
}

func TestSubmitRequestAndOrderWorkflow(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	view, err := h.order.SubmitRequest(ctx, SubmitRequestInput{
		CustomerName: "Juan",
		ContactLink:  "fb.com/juan",
		Category:     "Love",
		LetterType:   "Handwritten",
		Video:        &Upload{FileName: "v.mp4", ContentType: "video/mp4", Body: strings.NewReader("vid")},
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	wantCode := "REQ-" + defaultBatchID(epoch)
	if view.Order.Code != wantCode || view.Order.Status != domain.OrderStatusPending || !view.TicketBound {
		t.Fatalf("unexpected order view: %+v", view)
	}

	second, err := h.order.SubmitRequest(ctx, SubmitRequestInput{CustomerName: "Maria", ContactLink: "ig/maria"})
	if err != nil {
		t.Fatalf("second submit: %v", err)
	}
	if second.Order.Code == wantCode || !strings.HasPrefix(second.Order.Code, "REQ-") || second.TicketBound {
		t.Fatalf("collision not retried: %+v", second)
	}

	status, err := h.order.GetStatus(ctx, wantCode)
	if err != nil || !status.TicketExists {
		t.Fatalf("status: %+v %v", status, err)
	}

	if _, err := h.order.UpdateStatus(ctx, wantCode, domain.OrderStatusProcessing); err != nil {
		t.Fatalf("to processing: %v", err)
	}
	if _, err := h.order.UpdateStatus(ctx, wantCode, domain.OrderStatusPending); !errors.Is(err, domain.ErrInvalidOrderTx) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
	done, err := h.order.UpdateStatus(ctx, wantCode, domain.OrderStatusDone)
	if err != nil || done.Status != domain.OrderStatusDone {
		t.Fatalf("to done: %+v %v", done, err)
	}

	_ = h.ticket.DeleteTicket(ctx, wantCode)
	status, err = h.order.GetStatus(ctx, wantCode)
	if err != nil || status.TicketExists {
		t.Fatalf("order should outlive its ticket: %+v %v", status, err)
	}
}

func TestSubmitRequestValidation(t *testing.T) {
	h := newHarness(t)
	if _, err := h.order.SubmitRequest(context.Background(), SubmitRequestInput{CustomerName: "only"}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if _, err := h.order.GetStatus(context.Background(), "REQ-000000"); !domain.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}
