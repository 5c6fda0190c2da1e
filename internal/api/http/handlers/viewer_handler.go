package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/paperplay/sticker-service/internal/api/dto"
	"github.com/paperplay/sticker-service/internal/domain"
	"github.com/paperplay/sticker-service/internal/service"
	apperrors "github.com/paperplay/sticker-service/pkg/util/errorutil"
)

// ViewerHandler serves the public code endpoints: viewing and binding.
type ViewerHandler struct {
	tickets *service.TicketService
	binder  *service.BinderService
}

// NewViewerHandler constructs handler.
func NewViewerHandler(tickets *service.TicketService, binder *service.BinderService) *ViewerHandler {
	return &ViewerHandler{tickets: tickets, binder: binder}
}

// Status GET /t/:code.
func (h *ViewerHandler) Status(c *fiber.Ctx) error {
	status, err := h.tickets.ViewerStatus(requestContext(c), c.Params("code"))
	if err != nil {
		return err
	}
	c.Set(fiber.HeaderCacheControl, "no-store")
	code := http.StatusOK
	if status.State == service.ViewerNotFound {
		code = http.StatusNotFound
	}
	return c.Status(code).JSON(fiber.Map{"data": viewerStatusResponse(status)})
}

// BindVideo POST /t/:code/video (multipart: video, unlock_at, visible).
func (h *ViewerHandler) BindVideo(c *fiber.Ctx) error {
	form, err := c.MultipartForm()
	if err != nil {
		return apperrors.NewValidationError("multipart form required", nil)
	}
	opts, err := bindOptionsFromForm(form)
	if err != nil {
		return err
	}
	upload, release, err := openUpload(form, "video")
	defer release()
	if err != nil {
		return err
	}
	if upload == nil {
		return apperrors.NewValidationError("video file required", map[string]any{"field": "video"})
	}

	code := c.Params("code")
	ticket, err := h.binder.BindVideo(requestContext(c), code, *upload, opts)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": ticketResponse(ticket, h.tickets.ShareLink(ticket.Code))})
}

// BindContent POST /t/:code/content. JSON binds a stored video reference or
// a letter; multipart binds a letter with an optional image.
func (h *ViewerHandler) BindContent(c *fiber.Ctx) error {
	code := c.Params("code")
	ctx := requestContext(c)

	if isMultipart(c) {
		form, err := c.MultipartForm()
		if err != nil {
			return apperrors.NewValidationError("invalid multipart form", nil)
		}
		opts, err := bindOptionsFromForm(form)
		if err != nil {
			return err
		}
		image, release, err := openUpload(form, "image")
		defer release()
		if err != nil {
			return err
		}
		letter := domain.Letter{
			SenderName: formValue(form, "sender_name"),
			Body:       formValue(form, "body"),
			Theme:      formValue(form, "theme"),
		}
		ticket, err := h.binder.BindLetter(ctx, code, letter, image, opts)
		if err != nil {
			return err
		}
		return c.Status(http.StatusCreated).JSON(fiber.Map{"data": ticketResponse(ticket, h.tickets.ShareLink(ticket.Code))})
	}

	var req dto.BindContentRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	content := domain.Content{Kind: req.Kind, Video: req.Video}
	if req.Letter != nil {
		content.Letter = &domain.Letter{
			SenderName: req.Letter.SenderName,
			Body:       req.Letter.Body,
			Theme:      req.Letter.Theme,
		}
	}
	ticket, err := h.binder.BindContent(ctx, code, content, service.BindOptions{UnlockAt: req.UnlockAt, Visible: req.Visible})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": ticketResponse(ticket, h.tickets.ShareLink(ticket.Code))})
}
