package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/rrvaldoo/DOSWALLET/internal/wallet"
)

// RegisterWalletRoutes wires wallet read endpoints.
func RegisterWalletRoutes(r fiber.Router, h *wallet.Handler) {
	r.Get("/wallets/:accountId", h.Get)
}
