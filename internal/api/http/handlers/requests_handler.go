package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/paperplay/sticker-service/internal/service"
	apperrors "github.com/paperplay/sticker-service/pkg/util/errorutil"
)

// RequestsHandler accepts and tracks customer letter requests.
type RequestsHandler struct {
	tickets *service.TicketService
	orders  *service.OrderService
}

// NewRequestsHandler constructs handler.
func NewRequestsHandler(tickets *service.TicketService, orders *service.OrderService) *RequestsHandler {
	return &RequestsHandler{tickets: tickets, orders: orders}
}

type submitRequestBody struct {
	CustomerName string `json:"customer_name"`
	ContactLink  string `json:"contact_link"`
	Category     string `json:"category"`
	LetterType   string `json:"letter_type"`
}

// Submit POST /requests. Multipart carries an optional video field.
func (h *RequestsHandler) Submit(c *fiber.Ctx) error {
	var in service.SubmitRequestInput
	if isMultipart(c) {
		form, err := c.MultipartForm()
		if err != nil {
			return apperrors.NewValidationError("invalid multipart form", nil)
		}
		video, release, err := openUpload(form, "video")
		defer release()
		if err != nil {
			return err
		}
		in = service.SubmitRequestInput{
			CustomerName: formValue(form, "customer_name"),
			ContactLink:  formValue(form, "contact_link"),
			Category:     formValue(form, "category"),
			LetterType:   formValue(form, "letter_type"),
			Video:        video,
		}
	} else {
		var body submitRequestBody
		if err := c.BodyParser(&body); err != nil {
			return apperrors.NewValidationError("invalid payload", nil)
		}
		in = service.SubmitRequestInput{
			CustomerName: body.CustomerName,
			ContactLink:  body.ContactLink,
			Category:     body.Category,
			LetterType:   body.LetterType,
		}
	}

	view, err := h.orders.SubmitRequest(requestContext(c), in)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": orderViewResponse(view, h.tickets.ShareLink(view.Order.Code))})
}

// Status GET /requests/:code.
func (h *RequestsHandler) Status(c *fiber.Ctx) error {
	view, err := h.orders.GetStatus(requestContext(c), c.Params("code"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": orderViewResponse(view, h.tickets.ShareLink(view.Order.Code))})
}
