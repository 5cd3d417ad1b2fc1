package grpcserver

import (
	"context"
	"fmt"

	"github.com/MarkoPoloResearchLab/points/pkg/points"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client calls points.v1.PointService over an established connection.
type Client struct {
	conn grpc.ClientConnInterface
}

// NewClient wraps conn.
func NewClient(conn grpc.ClientConnInterface) *Client {
	return &Client{conn: conn}
}

func (client *Client) GetBalance(ctx context.Context, userID int64) (points.UserPoint, error) {
	response, err := client.invoke(ctx, methodGetBalance, map[string]any{fieldUserID: userID})
	if err != nil {
		return points.UserPoint{}, err
	}
	return parseUserPoint(response)
}

func (client *Client) GetHistory(ctx context.Context, userID int64) ([]points.PointHistory, error) {
	response, err := client.invoke(ctx, methodGetHistory, map[string]any{fieldUserID: userID})
	if err != nil {
		return nil, err
	}
	values := response.GetFields()[fieldEntries].GetListValue().GetValues()
	histories := make([]points.PointHistory, 0, len(values))
	for _, value := range values {
		history, err := parsePointHistory(value.GetStructValue())
		if err != nil {
			return nil, err
		}
		histories = append(histories, history)
	}
	return histories, nil
}

func (client *Client) Charge(ctx context.Context, userID int64, amount int64) (points.UserPoint, error) {
	response, err := client.invoke(ctx, methodCharge, map[string]any{fieldUserID: userID, fieldAmount: amount})
	if err != nil {
		return points.UserPoint{}, err
	}
	return parseUserPoint(response)
}

func (client *Client) Use(ctx context.Context, userID int64, amount int64) (points.UserPoint, error) {
	response, err := client.invoke(ctx, methodUse, map[string]any{fieldUserID: userID, fieldAmount: amount})
	if err != nil {
		return points.UserPoint{}, err
	}
	return parseUserPoint(response)
}

func (client *Client) invoke(ctx context.Context, method string, fields map[string]any) (*structpb.Struct, error) {
	request, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	response := new(structpb.Struct)
	if err := client.conn.Invoke(ctx, method, request, response); err != nil {
		return nil, err
	}
	return response, nil
}

func parseUserPoint(response *structpb.Struct) (points.UserPoint, error) {
	rawUserID, err := integerField(response, fieldUserID)
	if err != nil {
		return points.UserPoint{}, err
	}
	userID, err := points.NewUserID(rawUserID)
	if err != nil {
		return points.UserPoint{}, err
	}
	rawPoint, err := integerField(response, fieldPoint)
	if err != nil {
		return points.UserPoint{}, err
	}
	point, err := points.NewPoint(rawPoint)
	if err != nil {
		return points.UserPoint{}, err
	}
	updatedAtMillis, err := integerField(response, fieldUpdatedAtMillis)
	if err != nil {
		return points.UserPoint{}, err
	}
	return points.UserPoint{UserID: userID, Point: point, UpdatedAtMillis: updatedAtMillis}, nil
}

func parsePointHistory(entry *structpb.Struct) (points.PointHistory, error) {
	id, err := integerField(entry, fieldID)
	if err != nil {
		return points.PointHistory{}, err
	}
	rawUserID, err := integerField(entry, fieldUserID)
	if err != nil {
		return points.PointHistory{}, err
	}
	userID, err := points.NewUserID(rawUserID)
	if err != nil {
		return points.PointHistory{}, err
	}
	rawAmount, err := integerField(entry, fieldAmount)
	if err != nil {
		return points.PointHistory{}, err
	}
	amount, err := points.NewAmount(rawAmount)
	if err != nil {
		return points.PointHistory{}, err
	}
	transactionType, err := points.ParseTransactionType(entry.GetFields()[fieldType].GetStringValue())
	if err != nil {
		return points.PointHistory{}, err
	}
	timestampMillis, err := integerField(entry, fieldTimestampMillis)
	if err != nil {
		return points.PointHistory{}, err
	}
	return points.PointHistory{
		ID:              id,
		UserID:          userID,
		Amount:          amount,
		Type:            transactionType,
		TimestampMillis: timestampMillis,
	}, nil
}
