package ledger

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// Handler exposes read-only transaction history endpoints.
type Handler struct {
	reader Reader
}

// NewHandler builds a ledger HTTP handler.
func NewHandler(reader Reader) *Handler {
	return &Handler{reader: reader}
}

// Get returns a single transaction by identifier.
func (h *Handler) Get(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("transactionId"), 10, 64)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid transaction id")
	}
	entry, err := h.reader.FindByID(c.UserContext(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return fiber.NewError(http.StatusNotFound, "transaction not found")
		}
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.Status(http.StatusOK).JSON(entry)
}

// List returns transactions across all accounts, newest first.
func (h *Handler) List(c *fiber.Ctx) error {
	limit, offset := paging(c)
	entries, err := h.reader.ListAll(c.UserContext(), limit, offset)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"transactions": entries})
}

// ListByAccount returns an account's transactions, optionally filtered by kind.
func (h *Handler) ListByAccount(c *fiber.Ctx) error {
	accountID, err := strconv.ParseInt(c.Params("accountId"), 10, 64)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid account id")
	}
	limit, offset := paging(c)

	var entries []Entry
	if raw := c.Query("kind"); raw != "" {
		kind, err := ParseKind(raw)
		if err != nil {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
		entries, err = h.reader.ListByKind(c.UserContext(), accountID, kind, limit, offset)
		if err != nil {
			return fiber.NewError(http.StatusInternalServerError, err.Error())
		}
	} else {
		entries, err = h.reader.ListByAccount(c.UserContext(), accountID, limit, offset)
		if err != nil {
			return fiber.NewError(http.StatusInternalServerError, err.Error())
		}
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"transactions": entries})
}

func paging(c *fiber.Ctx) (limit, offset int) {
	limit = c.QueryInt("limit", defaultListLimit)
	if limit <= 0 || limit > maxListLimit {
		limit = defaultListLimit
	}
	offset = c.QueryInt("offset", 0)
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
