package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/paperplay/sticker-service/internal/api/dto"
	"github.com/paperplay/sticker-service/internal/domain"
	"github.com/paperplay/sticker-service/internal/service"
	apperrors "github.com/paperplay/sticker-service/pkg/util/errorutil"
)

// LettersHandler composes letters into fresh tickets.
type LettersHandler struct {
	tickets *service.TicketService
	binder  *service.BinderService
}

// NewLettersHandler constructs handler.
func NewLettersHandler(tickets *service.TicketService, binder *service.BinderService) *LettersHandler {
	return &LettersHandler{tickets: tickets, binder: binder}
}

// Compose POST /letters. Accepts JSON, or multipart with an image field.
func (h *LettersHandler) Compose(c *fiber.Ctx) error {
	var (
		letter domain.Letter
		opts   service.BindOptions
		image  *service.Upload
	)

	if isMultipart(c) {
		form, err := c.MultipartForm()
		if err != nil {
			return apperrors.NewValidationError("invalid multipart form", nil)
		}
		if opts, err = bindOptionsFromForm(form); err != nil {
			return err
		}
		var release func()
		image, release, err = openUpload(form, "image")
		defer release()
		if err != nil {
			return err
		}
		letter = domain.Letter{
			SenderName: formValue(form, "sender_name"),
			Body:       formValue(form, "body"),
			Theme:      formValue(form, "theme"),
		}
	} else {
		var req dto.LetterRequest
		if err := c.BodyParser(&req); err != nil {
			return apperrors.NewValidationError("invalid payload", nil)
		}
		letter = domain.Letter{SenderName: req.SenderName, Body: req.Body, Theme: req.Theme}
		opts = service.BindOptions{UnlockAt: req.UnlockAt, Visible: req.Visible}
	}

	ticket, err := h.binder.ComposeLetter(requestContext(c), letter, image, opts)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": ticketResponse(ticket, h.tickets.ShareLink(ticket.Code))})
}
