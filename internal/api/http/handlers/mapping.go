package handlers

import (
	"context"
	"mime/multipart"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/paperplay/sticker-service/internal/api/dto"
	"github.com/paperplay/sticker-service/internal/auth"
	"github.com/paperplay/sticker-service/internal/domain"
	"github.com/paperplay/sticker-service/internal/service"
	apperrors "github.com/paperplay/sticker-service/pkg/util/errorutil"
)

// requestContext carries the request deadline and, for operator routes,
// the acting operator.
func requestContext(c *fiber.Ctx) context.Context {
	ctx := c.UserContext()
	if principal, ok := auth.PrincipalFromContext(c); ok && principal.Operator != nil {
		ctx = service.WithOperator(ctx, principal.Operator.Subject)
	}
	return ctx
}

func ticketResponse(t *domain.Ticket, link string) dto.TicketResponse {
	resp := dto.TicketResponse{
		Code:      t.Code,
		BatchID:   t.BatchID,
		Link:      link,
		Bound:     t.IsBound(),
		UnlockAt:  t.UnlockAt,
		Visible:   t.Visible,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
	if t.Content != nil {
		kind := t.Content.Kind
		resp.Kind = &kind
	}
	return resp
}

func viewerStatusResponse(s service.ViewerStatus) dto.ViewerStatusResponse {
	resp := dto.ViewerStatusResponse{
		Code:     s.Code,
		State:    string(s.State),
		UnlockAt: s.UnlockAt,
		Content:  s.Content,
	}
	if s.Countdown != nil {
		resp.Countdown = s.Countdown
		resp.CountdownText = s.Countdown.String()
		resp.RemainingSeconds = int64(s.Remaining / time.Second)
	}
	return resp
}

func operatorStatusResponse(s service.OperatorStatus, link string) dto.OperatorStatusResponse {
	return dto.OperatorStatusResponse{
		Code:      s.Code,
		Link:      link,
		State:     string(s.State),
		Binding:   s.Binding,
		Bound:     s.Bound,
		Locked:    s.Locked,
		Kind:      s.Kind,
		UnlockAt:  s.UnlockAt,
		Visible:   s.Visible,
		BatchID:   s.BatchID,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
		Preview:   s.Preview,
	}
}

func orderResponse(o domain.Order, link string) dto.OrderResponse {
	return dto.OrderResponse{
		Code:         o.Code,
		CustomerName: o.CustomerName,
		ContactLink:  o.ContactLink,
		Category:     o.Category,
		LetterType:   o.LetterType,
		Status:       o.Status,
		Link:         link,
		CreatedAt:    o.CreatedAt,
		UpdatedAt:    o.UpdatedAt,
	}
}

func orderViewResponse(v *service.OrderView, link string) dto.OrderResponse {
	resp := orderResponse(v.Order, link)
	exists, bound := v.TicketExists, v.TicketBound
	resp.TicketExists = &exists
	resp.TicketBound = &bound
	return resp
}

func isMultipart(c *fiber.Ctx) bool {
	return strings.HasPrefix(strings.ToLower(c.Get(fiber.HeaderContentType)), fiber.MIMEMultipartForm)
}

func formValue(form *multipart.Form, key string) string {
	if vals := form.Value[key]; len(vals) > 0 {
		return strings.TrimSpace(vals[0])
	}
	return ""
}

// openUpload opens the first file under field. It returns a nil upload
// when the field is absent; release must always be called.
func openUpload(form *multipart.Form, field string) (upload *service.Upload, release func(), err error) {
	release = func() {}
	files := form.File[field]
	if len(files) == 0 {
		return nil, release, nil
	}
	header := files[0]
	f, err := header.Open()
	if err != nil {
		return nil, release, apperrors.NewValidationError("unreadable upload", map[string]any{"field": field})
	}
	return &service.Upload{
		FileName:    header.Filename,
		ContentType: header.Header.Get(fiber.HeaderContentType),
		Size:        header.Size,
		Body:        f,
	}, func() { _ = f.Close() }, nil
}

func bindOptionsFromForm(form *multipart.Form) (service.BindOptions, error) {
	var opts service.BindOptions
	unlockAt, err := parseTimeStrict(formValue(form, "unlock_at"))
	if err != nil {
		return opts, err
	}
	opts.UnlockAt = unlockAt
	if raw := formValue(form, "visible"); raw != "" {
		visible, err := strconv.ParseBool(raw)
		if err != nil {
			return opts, apperrors.NewValidationError("visible must be a boolean", nil)
		}
		opts.Visible = &visible
	}
	return opts, nil
}

func parseTimeStrict(val string) (*time.Time, error) {
	if val == "" {
		return nil, nil
	}
	parsed, err := time.Parse(time.RFC3339, val)
	if err != nil {
		return nil, apperrors.NewValidationError("unlock_at must be RFC3339", map[string]any{"value": val})
	}
	utc := parsed.UTC()
	return &utc, nil
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func paging(c *fiber.Ctx) (limit, offset int) {
	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), 50)
	if pageSize > 500 {
		pageSize = 500
	}
	return pageSize, (page - 1) * pageSize
}
