package handlers

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/paperplay/sticker-service/internal/api/dto"
	"github.com/paperplay/sticker-service/internal/domain"
	"github.com/paperplay/sticker-service/internal/repository"
	"github.com/paperplay/sticker-service/internal/service"
	apperrors "github.com/paperplay/sticker-service/pkg/util/errorutil"
)

// AdminHandler manages operator inventory and order endpoints.
type AdminHandler struct {
	tickets *service.TicketService
	binder  *service.BinderService
	orders  *service.OrderService
}

// NewAdminHandler constructs handler.
func NewAdminHandler(tickets *service.TicketService, binder *service.BinderService, orders *service.OrderService) *AdminHandler {
	return &AdminHandler{tickets: tickets, binder: binder, orders: orders}
}

// IssueBatch POST /admin/batches.
func (h *AdminHandler) IssueBatch(c *fiber.Ctx) error {
	var req dto.IssueBatchRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	batch, err := h.tickets.IssueBatch(requestContext(c), req.Count, req.Prefix)
	if err != nil {
		return err
	}
	resp := dto.BatchResponse{BatchID: batch.ID, Count: len(batch.Tickets), Tickets: make([]dto.TicketResponse, 0, len(batch.Tickets))}
	for i := range batch.Tickets {
		resp.Tickets = append(resp.Tickets, ticketResponse(&batch.Tickets[i], h.tickets.ShareLink(batch.Tickets[i].Code)))
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": resp})
}

// CreateTicket POST /admin/tickets.
func (h *AdminHandler) CreateTicket(c *fiber.Ctx) error {
	var req dto.CreateTicketRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return apperrors.NewValidationError("invalid payload", nil)
		}
	}
	ticket, err := h.tickets.CreateTicket(requestContext(c), req.Code)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": ticketResponse(ticket, h.tickets.ShareLink(ticket.Code))})
}

// ListTickets GET /admin/tickets?state=&batch_id=&page=&page_size=.
func (h *AdminHandler) ListTickets(c *fiber.Ctx) error {
	filter := repository.TicketFilter{Predicate: domain.PredicateAll}
	if raw := c.Query("state"); raw != "" {
		predicate, err := domain.ParseTicketPredicate(raw)
		if err != nil {
			return err
		}
		filter.Predicate = predicate
	}
	if batchID := strings.TrimSpace(c.Query("batch_id")); batchID != "" {
		filter.BatchID = &batchID
	}
	filter.Limit, filter.Offset = paging(c)

	tickets, err := h.tickets.ListTickets(requestContext(c), filter)
	if err != nil {
		return err
	}
	now := h.tickets.Now()
	items := make([]dto.OperatorStatusResponse, 0, len(tickets))
	for i := range tickets {
		items = append(items, operatorStatusResponse(service.ProjectOperator(&tickets[i], now), h.tickets.ShareLink(tickets[i].Code)))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetTicket GET /admin/tickets/:code.
func (h *AdminHandler) GetTicket(c *fiber.Ctx) error {
	status, err := h.tickets.OperatorStatus(requestContext(c), c.Params("code"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": operatorStatusResponse(status, h.tickets.ShareLink(status.Code))})
}

// DeleteTicket DELETE /admin/tickets/:code. Missing tickets also get 204.
func (h *AdminHandler) DeleteTicket(c *fiber.Ctx) error {
	if err := h.tickets.DeleteTicket(requestContext(c), c.Params("code")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// PurgeTickets DELETE /admin/tickets?state=bound|unbound|all. The state is
// required so an empty query never wipes the inventory.
func (h *AdminHandler) PurgeTickets(c *fiber.Ctx) error {
	raw := c.Query("state")
	if raw == "" {
		return apperrors.NewValidationError("state query parameter required", map[string]any{"allowed": []string{"bound", "unbound", "all"}})
	}
	predicate, err := domain.ParseTicketPredicate(raw)
	if err != nil {
		return err
	}
	deleted, err := h.tickets.DeleteWhere(requestContext(c), predicate)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.PurgeResponse{State: predicate, Deleted: deleted}})
}

// ClearContent DELETE /admin/tickets/:code/content.
func (h *AdminHandler) ClearContent(c *fiber.Ctx) error {
	if err := h.binder.ClearContent(requestContext(c), c.Params("code")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// ListOrders GET /admin/orders?status=&page=&page_size=.
func (h *AdminHandler) ListOrders(c *fiber.Ctx) error {
	var filter repository.OrderFilter
	if raw := c.Query("status"); raw != "" {
		status, err := domain.ParseOrderStatus(raw)
		if err != nil {
			return err
		}
		filter.Status = &status
	}
	filter.Limit, filter.Offset = paging(c)

	orders, err := h.orders.List(requestContext(c), filter)
	if err != nil {
		return err
	}
	items := make([]dto.OrderResponse, 0, len(orders))
	for _, o := range orders {
		items = append(items, orderResponse(o, h.tickets.ShareLink(o.Code)))
	}
	return c.JSON(fiber.Map{"data": items})
}

// UpdateOrderStatus PATCH /admin/orders/:code/status.
func (h *AdminHandler) UpdateOrderStatus(c *fiber.Ctx) error {
	var req dto.UpdateOrderStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	status, err := domain.ParseOrderStatus(req.Status)
	if err != nil {
		return err
	}
	order, err := h.orders.UpdateStatus(requestContext(c), c.Params("code"), status)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": orderResponse(*order, h.tickets.ShareLink(order.Code))})
}
