package handlers

import (
	"errors"
	"net/http"
	"time"

	"dutch-auction-system/internal/domain"
	"dutch-auction-system/internal/services"
	"dutch-auction-system/pkg/logger"
	"dutch-auction-system/pkg/utils"

	"github.com/labstack/echo/v4"
)

type AuctionHandler struct {
	auctionService *services.AuctionService
	bidService     *services.BidService
	log            logger.Logger
}

func NewAuctionHandler(auctionService *services.AuctionService, bidService *services.BidService, log logger.Logger) *AuctionHandler {
	return &AuctionHandler{
		auctionService: auctionService,
		bidService:     bidService,
		log:            log,
	}
}

func (h *AuctionHandler) Register(g *echo.Group) {
	g.POST("/tenants/:tenantID/auctions", h.CreateAuction)
	g.GET("/tenants/:tenantID/auctions/:id", h.GetAuction)
	g.POST("/tenants/:tenantID/auctions/:id/publish", h.PublishAuction)
	g.POST("/tenants/:tenantID/auctions/:id/bids", h.PlaceBid)
	g.POST("/tenants/:tenantID/auctions/:id/end", h.EndAuction)
	g.POST("/tenants/:tenantID/auctions/:id/cancel", h.CancelAuction)
	g.GET("/tenants/:tenantID/auctions/:id/price", h.CurrentPrice)
	g.DELETE("/tenants/:tenantID/auctions/:id/slots/:slotID", h.WithdrawSlot)
}

type CreateAuctionRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`

	Currency            string `json:"currency"`
	StartPrice          string `json:"start_price"`
	EndPrice            string `json:"end_price"`
	DropType            string `json:"drop_type"`
	DropValue           string `json:"drop_value"`
	DropIntervalSeconds int64  `json:"drop_interval_seconds"`
	DurationSeconds     int64  `json:"duration_seconds"`

	PublishAt *time.Time `json:"publish_at,omitempty"`
	EndAt     time.Time  `json:"end_at"`

	ItemRefs []string `json:"item_refs"`
}

type AuctionResponse struct {
	AuctionID      string     `json:"auction_id"`
	TenantID       string     `json:"tenant_id"`
	Title          string     `json:"title"`
	Status         string     `json:"status"`
	PublishAt      *time.Time `json:"publish_at,omitempty"`
	PublishedOn    *time.Time `json:"published_on,omitempty"`
	EndAt          time.Time  `json:"end_at"`
	TotalItems     int        `json:"total_items"`
	SoldItems      int        `json:"sold_items"`
	RemainingItems int        `json:"remaining_items"`
	Version        int64      `json:"version"`
}

func toAuctionResponse(a *domain.Auction) AuctionResponse {
	return AuctionResponse{
		AuctionID:      a.ID,
		TenantID:       a.TenantID,
		Title:          a.Title,
		Status:         a.Status.String(),
		PublishAt:      a.PublishAt,
		PublishedOn:    a.PublishedOn,
		EndAt:          a.EndAt,
		TotalItems:     a.TotalItems(),
		SoldItems:      a.SoldItems(),
		RemainingItems: a.RemainingItems(),
		Version:        a.Version,
	}
}

func (h *AuctionHandler) CreateAuction(c echo.Context) error {
	tenantID := c.Param("tenantID")

	var req CreateAuctionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	if len(req.ItemRefs) == 0 {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "at least one item is required"})
	}

	auction, err := h.auctionService.CreateAuction(c.Request().Context(), services.CreateAuctionParams{
		TenantID:            tenantID,
		Title:               req.Title,
		Description:         req.Description,
		Currency:            req.Currency,
		StartPrice:          req.StartPrice,
		EndPrice:            req.EndPrice,
		DropType:            domain.DropType(req.DropType),
		DropValue:           req.DropValue,
		DropIntervalSeconds: req.DropIntervalSeconds,
		DurationSeconds:     req.DurationSeconds,
		PublishAt:           req.PublishAt,
		EndAt:               req.EndAt,
		ItemRefs:            req.ItemRefs,
	})
	if err != nil {
		h.log.Error("Failed to create auction", "tenant_id", tenantID, "error", err)
		return h.errorResponse(c, err)
	}

	return c.JSON(http.StatusCreated, toAuctionResponse(auction))
}

func (h *AuctionHandler) GetAuction(c echo.Context) error {
	auction, err := h.auctionService.GetAuction(c.Request().Context(), c.Param("tenantID"), c.Param("id"))
	if err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, toAuctionResponse(auction))
}

func (h *AuctionHandler) PublishAuction(c echo.Context) error {
	auction, err := h.auctionService.PublishAuction(c.Request().Context(), c.Param("tenantID"), c.Param("id"))
	if err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, toAuctionResponse(auction))
}

type PlaceBidRequest struct {
	BidID    string `json:"bid_id"`
	Bidder   string `json:"bidder_ref"`
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
	// PlacedAt defaults to the server clock; callers with their own
	// canonical timestamp may supply it.
	PlacedAt *time.Time `json:"placed_at,omitempty"`
}

type PlaceBidResponse struct {
	BidID    string `json:"bid_id"`
	Accepted bool   `json:"accepted"`
	Reason   string `json:"reason,omitempty"`
	SlotID   string `json:"slot_id,omitempty"`
	Price    string `json:"price,omitempty"`
	ItemRef  string `json:"item_ref,omitempty"`
}

func (h *AuctionHandler) PlaceBid(c echo.Context) error {
	var req PlaceBidRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	if req.Bidder == "" || req.Amount == "" || req.Currency == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "bidder_ref, amount and currency are required"})
	}
	if req.BidID == "" {
		req.BidID = utils.GenerateID("bid")
	}

	placedAt := time.Now().UTC()
	if req.PlacedAt != nil {
		placedAt = req.PlacedAt.UTC()
	}

	outcome, err := h.bidService.PlaceBid(c.Request().Context(), c.Param("tenantID"), c.Param("id"), services.PlaceBidParams{
		BidID:     req.BidID,
		BidderRef: req.Bidder,
		Amount:    req.Amount,
		Currency:  req.Currency,
		PlacedAt:  placedAt,
	})
	if err != nil {
		return h.errorResponse(c, err)
	}

	resp := PlaceBidResponse{
		BidID:    outcome.BidID,
		Accepted: outcome.Accepted,
		Reason:   string(outcome.Reason),
	}
	if outcome.Accepted {
		resp.SlotID = outcome.Result.SlotID
		resp.Price = outcome.Result.WinningPrice.Amount().String()
		resp.ItemRef = outcome.Result.ReservationHint
	}

	return c.JSON(http.StatusOK, resp)
}

func (h *AuctionHandler) EndAuction(c echo.Context) error {
	auction, err := h.auctionService.EndAuction(c.Request().Context(),
		c.Param("tenantID"), c.Param("id"), domain.EndReasonManual)
	if err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, toAuctionResponse(auction))
}

type CancelAuctionRequest struct {
	Reason string `json:"reason"`
}

func (h *AuctionHandler) CancelAuction(c echo.Context) error {
	var req CancelAuctionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	auction, err := h.auctionService.CancelAuction(c.Request().Context(),
		c.Param("tenantID"), c.Param("id"), req.Reason)
	if err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, toAuctionResponse(auction))
}

func (h *AuctionHandler) CurrentPrice(c echo.Context) error {
	price, err := h.auctionService.CurrentPrice(c.Request().Context(),
		c.Param("tenantID"), c.Param("id"), time.Now().UTC())
	if err != nil {
		return h.errorResponse(c, err)
	}

	return c.JSON(http.StatusOK, map[string]string{
		"auction_id": c.Param("id"),
		"price":      price.Amount().String(),
		"currency":   price.Currency(),
	})
}

func (h *AuctionHandler) WithdrawSlot(c echo.Context) error {
	auction, err := h.auctionService.WithdrawSlot(c.Request().Context(),
		c.Param("tenantID"), c.Param("id"), c.Param("slotID"))
	if err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, toAuctionResponse(auction))
}

func (h *AuctionHandler) errorResponse(c echo.Context, err error) error {
	switch {
	case errors.Is(err, domain.ErrAuctionNotFound), errors.Is(err, domain.ErrSlotNotFound):
		return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, domain.ErrConcurrencyConflict):
		return c.JSON(http.StatusConflict, map[string]string{"error": "auction was updated concurrently, please retry"})
	case errors.Is(err, domain.ErrInvalidDropRate),
		errors.Is(err, domain.ErrInvalidSchedule),
		errors.Is(err, domain.ErrInvalidAuction),
		errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrInvalidCurrency),
		errors.Is(err, domain.ErrCurrencyMismatch),
		errors.Is(err, domain.ErrNoSlots),
		errors.Is(err, domain.ErrAlreadyPublished):
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, domain.ErrNotActive):
		return c.JSON(http.StatusConflict, map[string]string{"error": "no item is currently on sale"})
	}

	if reason, ok := domain.RejectionOf(err); ok {
		return c.JSON(http.StatusConflict, map[string]string{"error": string(reason)})
	}

	h.log.Error("Unhandled error", "error", err)
	return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal error"})
}
