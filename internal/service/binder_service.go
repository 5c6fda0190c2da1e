package service

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/paperplay/sticker-service/internal/clock"
	"github.com/paperplay/sticker-service/internal/domain"
	"github.com/paperplay/sticker-service/internal/events"
	"github.com/paperplay/sticker-service/internal/observability"
	"github.com/paperplay/sticker-service/internal/repository"
	"github.com/paperplay/sticker-service/internal/storage"
)

// Upload is one asset handed to the binder. Body is read to completion
// before any ticket state changes.
type Upload struct {
	FileName    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// BindOptions carries the optional gate settings for a bind. A nil Visible
// means visible.
type BindOptions struct {
	UnlockAt *time.Time
	Visible  *bool
}

func (o BindOptions) visible() bool {
	return o.Visible == nil || *o.Visible
}

// BinderService attaches content to tickets. Assets are always uploaded
// before the pointer is written; a failed upload leaves the ticket unbound.
type BinderService struct {
	tickets    repository.TicketRepository
	store      storage.Store
	clock      clock.Clock
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
	attempts   int
	codeLength int
}

// NewBinderService constructs the service.
func NewBinderService(deps TicketDependencies) *BinderService {
	deps = deps.withDefaults()
	return &BinderService{
		tickets:    deps.TicketRepo,
		store:      deps.Store,
		clock:      deps.Clock,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
		attempts:   deps.Issue.MaxCodeAttempts,
		codeLength: deps.Issue.RandomCodeLength,
	}
}

// BindContent attaches an externally hosted payload to an unbound ticket.
// Caller-supplied references never carry a storage key, so clearing or
// deleting the ticket later cannot remove an object it did not upload.
func (s *BinderService) BindContent(ctx context.Context, code string, content domain.Content, opts BindOptions) (*domain.Ticket, error) {
	code = strings.TrimSpace(code)
	content = externalContent(content)
	if err := content.Validate(); err != nil {
		return nil, err
	}
	ticket, err := s.tickets.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if err := checkUnlockAt(ticket.CreatedAt, opts.UnlockAt); err != nil {
		return nil, err
	}
	return s.bind(ctx, code, content, opts)
}

// BindVideo uploads the video and then binds it. If another bind wins the
// race after the upload, the uploaded object is removed again.
func (s *BinderService) BindVideo(ctx context.Context, code string, upload Upload, opts BindOptions) (*domain.Ticket, error) {
	code = strings.TrimSpace(code)
	if err := checkMedia(upload, "video/"); err != nil {
		return nil, err
	}
	if err := s.precheck(ctx, "bind video", code, opts); err != nil {
		return nil, err
	}

	ref, err := s.upload(ctx, "bind video", code, domain.ContentKindVideo, path.Join("videos", code), upload)
	if err != nil {
		return nil, err
	}
	content := domain.Content{Kind: domain.ContentKindVideo, Video: ref}
	ticket, err := s.bind(ctx, code, content, opts)
	if err != nil {
		purgeAssets(ctx, s.store, s.logger, &content)
		return nil, err
	}
	return ticket, nil
}

// BindLetter binds a letter, uploading its optional image first.
func (s *BinderService) BindLetter(ctx context.Context, code string, letter domain.Letter, image *Upload, opts BindOptions) (*domain.Ticket, error) {
	code = strings.TrimSpace(code)
	content := domain.Content{Kind: domain.ContentKindLetter, Letter: &letter}
	letter.Image = nil
	if err := content.Validate(); err != nil {
		return nil, err
	}
	if image != nil {
		if err := checkMedia(*image, "image/"); err != nil {
			return nil, err
		}
	}
	if err := s.precheck(ctx, "bind letter", code, opts); err != nil {
		return nil, err
	}

	if image != nil {
		ref, err := s.upload(ctx, "bind letter", code, domain.ContentKindLetter, path.Join("letters", code), *image)
		if err != nil {
			return nil, err
		}
		letter.Image = ref
	}
	ticket, err := s.bind(ctx, code, content, opts)
	if err != nil {
		purgeAssets(ctx, s.store, s.logger, &content)
		return nil, err
	}
	return ticket, nil
}

// ComposeLetter creates a fresh ticket that already carries the letter.
// The image, if any, is stored before the ticket exists.
func (s *BinderService) ComposeLetter(ctx context.Context, letter domain.Letter, image *Upload, opts BindOptions) (*domain.Ticket, error) {
	letter.Image = nil
	content := domain.Content{Kind: domain.ContentKindLetter, Letter: &letter}
	if err := content.Validate(); err != nil {
		return nil, err
	}
	now := s.clock.Now()
	if err := checkUnlockAt(now, opts.UnlockAt); err != nil {
		return nil, err
	}
	if image != nil {
		if err := checkMedia(*image, "image/"); err != nil {
			return nil, err
		}
		ref, err := s.upload(ctx, "compose letter", "", domain.ContentKindLetter, "letters", *image)
		if err != nil {
			return nil, err
		}
		letter.Image = ref
	}

	ticket, err := insertWithGeneratedCode(ctx, s.tickets, s.attempts, func(int) (string, error) {
		return randomCode(s.codeLength)
	}, func(code string) *domain.Ticket {
		return &domain.Ticket{
			Code:      code,
			Content:   &content,
			UnlockAt:  opts.UnlockAt,
			Visible:   opts.visible(),
			CreatedAt: now,
		}
	})
	if err != nil {
		purgeAssets(ctx, s.store, s.logger, &content)
		return nil, err
	}

	s.metrics.TicketsIssued("letter", 1)
	s.metrics.ContentBound(string(domain.ContentKindLetter))
	actor := actorFrom(ctx)
	publish(ctx, s.dispatcher, s.logger, events.New(events.EventTicketIssued, ticket.Code, actor, now,
		events.TicketIssuedPayload{Origin: "letter"}))
	publish(ctx, s.dispatcher, s.logger, events.New(events.EventContentBound, ticket.Code, actor, now,
		events.ContentBoundPayload{Kind: content.Kind, UnlockAt: ticket.UnlockAt, Visible: ticket.Visible}))
	return ticket, nil
}

// ClearContent unbinds the ticket and then deletes its assets on a best
// effort basis. Clearing an unbound ticket succeeds.
func (s *BinderService) ClearContent(ctx context.Context, code string) error {
	code = strings.TrimSpace(code)
	now := s.clock.Now()
	previous, err := s.tickets.ClearContent(ctx, code, now)
	if err != nil {
		return err
	}
	if previous == nil {
		return nil
	}
	purged := purgeAssets(ctx, s.store, s.logger, previous)
	s.metrics.ContentCleared()
	publish(ctx, s.dispatcher, s.logger, events.New(events.EventContentCleared, code, actorFrom(ctx), now,
		events.ContentClearedPayload{Kind: previous.Kind, AssetsPurged: purged}))
	return nil
}

func (s *BinderService) bind(ctx context.Context, code string, content domain.Content, opts BindOptions) (*domain.Ticket, error) {
	now := s.clock.Now()
	ticket, err := s.tickets.BindContent(ctx, code, repository.ContentBinding{
		Content:  content,
		UnlockAt: opts.UnlockAt,
		Visible:  opts.visible(),
		At:       now,
	})
	if err != nil {
		return nil, err
	}
	s.metrics.ContentBound(string(content.Kind))
	publish(ctx, s.dispatcher, s.logger, events.New(events.EventContentBound, code, actorFrom(ctx), now,
		events.ContentBoundPayload{Kind: content.Kind, UnlockAt: ticket.UnlockAt, Visible: ticket.Visible}))
	return ticket, nil
}

// precheck avoids uploading for tickets that cannot be bound. The
// conditional bind remains the authority.
func (s *BinderService) precheck(ctx context.Context, op, code string, opts BindOptions) error {
	ticket, err := s.tickets.GetByCode(ctx, code)
	if err != nil {
		return err
	}
	if ticket.IsBound() {
		return domain.NewTicketError(op, code, domain.ErrAlreadyBound, nil)
	}
	return checkUnlockAt(ticket.CreatedAt, opts.UnlockAt)
}

func (s *BinderService) upload(ctx context.Context, op, code string, kind domain.ContentKind, prefix string, up Upload) (*domain.AssetReference, error) {
	if s.store == nil {
		return nil, domain.NewTicketError(op, code, domain.ErrUploadFailed, fmt.Errorf("no asset store configured"))
	}
	obj, err := s.store.Put(ctx, storage.PutInput{
		Prefix:      prefix,
		FileName:    up.FileName,
		ContentType: up.ContentType,
		Body:        up.Body,
	})
	if err != nil {
		s.metrics.UploadFailed(string(kind))
		s.logger.Warn("asset upload failed", zap.String("code", code), zap.String("kind", string(kind)), zap.Error(err))
		return nil, domain.NewTicketError(op, code, domain.ErrUploadFailed, err)
	}
	return &domain.AssetReference{
		StorageKey: obj.Key,
		URL:        obj.URL,
		FileName:   up.FileName,
		MimeType:   up.ContentType,
		SizeBytes:  obj.Size,
		Checksum:   obj.Checksum,
	}, nil
}

func checkUnlockAt(createdAt time.Time, unlockAt *time.Time) error {
	if unlockAt != nil && !unlockAt.After(createdAt) {
		return fmt.Errorf("%w: unlock_at must be after the ticket was created", domain.ErrInvalidInput)
	}
	return nil
}

func checkMedia(up Upload, family string) error {
	if up.Body == nil {
		return fmt.Errorf("%w: file required", domain.ErrInvalidInput)
	}
	ct := strings.ToLower(strings.TrimSpace(up.ContentType))
	if ct != "" && ct != "application/octet-stream" && !strings.HasPrefix(ct, family) {
		return fmt.Errorf("%w: expected %s* upload, got %s", domain.ErrInvalidInput, family, up.ContentType)
	}
	return nil
}

// externalContent copies content with every storage key and checksum
// dropped. Only uploads made by this service own a key.
func externalContent(content domain.Content) domain.Content {
	if content.Video != nil {
		content.Video = externalRef(content.Video)
	}
	if content.Letter != nil {
		letter := *content.Letter
		if letter.Image != nil {
			letter.Image = externalRef(letter.Image)
		}
		content.Letter = &letter
	}
	return content
}

func externalRef(ref *domain.AssetReference) *domain.AssetReference {
	out := *ref
	out.StorageKey = ""
	out.Checksum = ""
	return &out
}
