package orders

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-events/meridian-beo/internal/platform/httpx"
	"github.com/meridian-events/meridian-beo/internal/shared"
)

// maxUploadBytes caps a single attachment upload.
const maxUploadBytes = 25 << 20

// Handler exposes the order workflow over HTTP.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		validate: validator.New(),
	}
}

// MountRoutes registers order routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/orders", func(r chi.Router) {
		r.Post("/", h.createOrder)
		r.Get("/", h.listOrders)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.getOrder)
			r.Delete("/", h.deleteOrder)
			r.Post("/confirm", h.confirmOrder)
			r.Post("/send", h.sendToKanit)
			r.Post("/approve", h.approve)
			r.Post("/schedules", h.updateSchedules)
			r.Post("/beos", h.updateBeos)
			r.Post("/attachments", h.addOrderAttachment)
			r.Delete("/attachments/{aid}", h.deleteOrderAttachment)
			r.Post("/beos/{bid}/attachments", h.addBeoAttachment)
			r.Get("/pdf/status", h.pdfStatus)
			r.Post("/pdf/regenerate", h.regeneratePDF)
			r.Get("/pdf", h.downloadPDF)
			r.Get("/pdf/preview", h.previewPDF)
		})
	})
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid %s", shared.ErrValidation, name)
	}
	return id, nil
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	order, err := h.service.CreateOrder(r.Context(), req)
	if err != nil {
		h.fail(w, r, "create order", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, order)
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := ListOrdersFilter{
		Status:    OrderStatus(q.Get("status")),
		BeoStatus: BeoStatus(q.Get("status_beo")),
		Search:    q.Get("q"),
	}
	if v := q.Get("customer_id"); v != "" {
		f.CustomerID, _ = strconv.ParseInt(v, 10, 64)
	}
	if v := q.Get("limit"); v != "" {
		f.Limit, _ = strconv.Atoi(v)
	}
	if v := q.Get("offset"); v != "" {
		f.Offset, _ = strconv.Atoi(v)
	}
	if err := h.validate.Struct(f); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	result, err := h.service.ListOrders(r.Context(), f)
	if err != nil {
		h.fail(w, r, "list orders", err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	order, err := h.service.GetOrder(r.Context(), id)
	if err != nil {
		h.fail(w, r, "get order", err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) deleteOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.DeleteOrder(r.Context(), id); err != nil {
		h.fail(w, r, "delete order", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) confirmOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	resp, err := h.service.ConfirmOrder(r.Context(), id)
	if err != nil {
		h.fail(w, r, "confirm order", err)
		return
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) sendToKanit(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	resp, err := h.service.SendToKanit(r.Context(), id)
	if err != nil {
		h.fail(w, r, "send to kanit", err)
		return
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) approve(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	resp, err := h.service.Approve(r.Context(), id)
	if err != nil {
		h.fail(w, r, "approve order", err)
		return
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) updateSchedules(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req UpdateSchedulesRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	order, err := h.service.UpdateSchedules(r.Context(), id, req)
	if err != nil {
		h.fail(w, r, "update schedules", err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) updateBeos(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req UpdateBeosRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	order, err := h.service.UpdateBeos(r.Context(), id, req)
	if err != nil {
		h.fail(w, r, "update beos", err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

// readUpload pulls the "file" part out of a multipart form.
func readUpload(r *http.Request) (string, []byte, error) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return "", nil, fmt.Errorf("%w: %v", shared.ErrValidation, err)
	}
	f, header, err := r.FormFile("file")
	if err != nil {
		return "", nil, fmt.Errorf("%w: missing file field", shared.ErrValidation)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxUploadBytes+1))
	if err != nil {
		return "", nil, err
	}
	if len(data) > maxUploadBytes {
		return "", nil, fmt.Errorf("%w: file exceeds upload limit", shared.ErrValidation)
	}
	return header.Filename, data, nil
}

func (h *Handler) addOrderAttachment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	name, data, err := readUpload(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	att, err := h.service.AddOrderAttachment(r.Context(), id, name, data)
	if err != nil {
		h.fail(w, r, "add attachment", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, att)
}

func (h *Handler) deleteOrderAttachment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	aid, err := pathID(r, "aid")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.DeleteOrderAttachment(r.Context(), id, aid); err != nil {
		h.fail(w, r, "delete attachment", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) addBeoAttachment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	bid, err := pathID(r, "bid")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	name, data, err := readUpload(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	att, err := h.service.AddBeoAttachment(r.Context(), id, bid, name, data)
	if err != nil {
		h.fail(w, r, "add beo attachment", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, att)
}

func (h *Handler) pdfStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	st, err := h.service.PDFStatus(r.Context(), id)
	if err != nil {
		h.fail(w, r, "pdf status", err)
		return
	}
	httpx.JSON(w, http.StatusOK, st)
}

func (h *Handler) regeneratePDF(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	file, err := h.service.RegeneratePDF(r.Context(), id)
	if err != nil {
		h.fail(w, r, "regenerate pdf", err)
		return
	}
	httpx.JSON(w, http.StatusOK, file)
}

func (h *Handler) downloadPDF(w http.ResponseWriter, r *http.Request) {
	h.servePDF(w, r, "attachment")
}

func (h *Handler) previewPDF(w http.ResponseWriter, r *http.Request) {
	h.servePDF(w, r, "inline")
}

func (h *Handler) servePDF(w http.ResponseWriter, r *http.Request, disposition string) {
	id, err := pathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	dl, err := h.service.DownloadPDF(r.Context(), id)
	if err != nil {
		h.fail(w, r, "download pdf", err)
		return
	}

	w.Header().Set("Content-Type", dl.MimeType)
	w.Header().Set("Content-Length", strconv.Itoa(len(dl.Data)))
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("%s; filename=%q", disposition, dl.Filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(dl.Data)
}

// fail logs unexpected errors before mapping them onto the problem
// detail response.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	if !errors.Is(err, shared.ErrNotFound) &&
		!errors.Is(err, shared.ErrValidation) &&
		!errors.Is(err, shared.ErrTransitionConflict) &&
		!errors.Is(err, shared.ErrNotApproved) &&
		!errors.Is(err, shared.ErrNeedsRegeneration) {
		h.logger.Error(op, slog.String("path", r.URL.Path), slog.String("error", err.Error()))
	}
	httpx.RespondError(w, err)
}
