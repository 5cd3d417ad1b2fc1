package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/MarkoPoloResearchLab/points/pkg/points"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	errorInvalidUserID          = "invalid_user_id"
	errorInvalidAmount          = "invalid_amount"
	errorInvalidPayload         = "invalid_payload"
	errorAmountTooLarge         = "amount_too_large"
	errorAmountTooSmall         = "amount_too_small"
	errorAmountNotAligned       = "amount_not_aligned"
	errorBalanceCeilingExceeded = "balance_ceiling_exceeded"
	errorInsufficientBalance    = "insufficient_balance"
	errorStorageUnavailable     = "storage_unavailable"
	errorTimeout                = "timeout"
	errorInternal               = "internal_error"
)

type pointHandler struct {
	pointService   *points.Service
	logger         *zap.Logger
	requestTimeout time.Duration
}

type userPointPayload struct {
	ID           int64 `json:"id"`
	Point        int64 `json:"point"`
	UpdateMillis int64 `json:"updateMillis"`
}

type pointHistoryPayload struct {
	ID           int64  `json:"id"`
	UserID       int64  `json:"userId"`
	Amount       int64  `json:"amount"`
	Type         string `json:"type"`
	UpdateMillis int64  `json:"updateMillis"`
}

func (handler *pointHandler) handleBalance(ctx *gin.Context) {
	userID, ok := parseUserID(ctx)
	if !ok {
		return
	}
	requestCtx, cancel := withTimeout(ctx, handler.requestTimeout)
	defer cancel()

	userPoint, err := handler.pointService.Balance(requestCtx, userID)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, newUserPointPayload(userPoint))
}

func (handler *pointHandler) handleHistory(ctx *gin.Context) {
	userID, ok := parseUserID(ctx)
	if !ok {
		return
	}
	requestCtx, cancel := withTimeout(ctx, handler.requestTimeout)
	defer cancel()

	histories, err := handler.pointService.History(requestCtx, userID)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	payload := make([]pointHistoryPayload, 0, len(histories))
	for _, history := range histories {
		payload = append(payload, pointHistoryPayload{
			ID:           history.ID,
			UserID:       history.UserID.Int64(),
			Amount:       history.Amount.Int64(),
			Type:         history.Type.String(),
			UpdateMillis: history.TimestampMillis,
		})
	}
	ctx.JSON(http.StatusOK, payload)
}

func (handler *pointHandler) handleCharge(ctx *gin.Context) {
	handler.handleMutation(ctx, handler.pointService.Charge)
}

func (handler *pointHandler) handleUse(ctx *gin.Context) {
	handler.handleMutation(ctx, handler.pointService.Use)
}

func (handler *pointHandler) handleMutation(ctx *gin.Context, mutate func(context.Context, points.UserID, points.Amount) (points.UserPoint, error)) {
	userID, ok := parseUserID(ctx)
	if !ok {
		return
	}
	var rawAmount int64
	if err := ctx.ShouldBindJSON(&rawAmount); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse(errorInvalidPayload, "expected a JSON integer amount"))
		return
	}
	amount, err := points.NewAmount(rawAmount)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	requestCtx, cancel := withTimeout(ctx, handler.requestTimeout)
	defer cancel()

	userPoint, err := mutate(requestCtx, userID, amount)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, newUserPointPayload(userPoint))
}

func parseUserID(ctx *gin.Context) (points.UserID, bool) {
	raw, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse(errorInvalidUserID, "user id must be an integer"))
		return points.UserID{}, false
	}
	userID, err := points.NewUserID(raw)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse(errorInvalidUserID, err.Error()))
		return points.UserID{}, false
	}
	return userID, true
}

func (handler *pointHandler) respondError(ctx *gin.Context, err error) {
	statusCode, code := classifyError(err)
	message := err.Error()
	if statusCode >= http.StatusInternalServerError {
		handler.logger.Error("point request failed", zap.String("code", code), zap.Error(err))
		message = http.StatusText(statusCode)
	}
	ctx.JSON(statusCode, errorResponse(code, message))
}

func classifyError(err error) (int, string) {
	switch {
	case errors.Is(err, points.ErrInvalidUserID):
		return http.StatusBadRequest, errorInvalidUserID
	case errors.Is(err, points.ErrInvalidAmount):
		return http.StatusBadRequest, errorInvalidAmount
	case errors.Is(err, points.ErrAmountTooLarge):
		return http.StatusBadRequest, errorAmountTooLarge
	case errors.Is(err, points.ErrAmountTooSmall):
		return http.StatusBadRequest, errorAmountTooSmall
	case errors.Is(err, points.ErrAmountNotAligned):
		return http.StatusBadRequest, errorAmountNotAligned
	case errors.Is(err, points.ErrBalanceCeilingExceeded):
		return http.StatusConflict, errorBalanceCeilingExceeded
	case errors.Is(err, points.ErrInsufficientBalance):
		return http.StatusConflict, errorInsufficientBalance
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, errorTimeout
	case errors.Is(err, points.ErrStorageUnavailable):
		return http.StatusServiceUnavailable, errorStorageUnavailable
	default:
		return http.StatusInternalServerError, errorInternal
	}
}

func newUserPointPayload(userPoint points.UserPoint) userPointPayload {
	return userPointPayload{
		ID:           userPoint.UserID.Int64(),
		Point:        userPoint.Point.Int64(),
		UpdateMillis: userPoint.UpdatedAtMillis,
	}
}

func errorResponse(code string, message string) gin.H {
	return gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	}
}
