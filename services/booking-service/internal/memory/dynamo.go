package memory

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"github.com/md-rashed-zaman/apptchat/services/booking-service/internal/model"
)

const skPrefixMsg = "MSG#"

type dynamodbAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// DynamoLog is a cold log on a single-table layout: PK=CONV#<phone>,
// SK=MSG#<timestamp>#<seq>#<batch>. The log is append-only; items get a ttl
// attribute only when retention is positive.
type DynamoLog struct {
	api       dynamodbAPI
	table     string
	retention time.Duration
}

func NewDynamoLog(api dynamodbAPI, table string, retention time.Duration) (*DynamoLog, error) {
	if api == nil {
		return nil, errors.New("memory: dynamodb api must not be nil")
	}
	if strings.TrimSpace(table) == "" {
		return nil, errors.New("memory: dynamodb table name must not be empty")
	}
	return &DynamoLog{api: api, table: table, retention: retention}, nil
}

func convPK(phone string) string {
	return "CONV#" + phone
}

// msgSK orders by timestamp then position in the batch. The batch id keeps
// two appends with the same timestamp from overwriting each other.
func msgSK(ts time.Time, seq int, batch string) string {
	return fmt.Sprintf("%s%s#%03d#%s", skPrefixMsg, ts.UTC().Format(time.RFC3339Nano), seq, batch)
}

func (l *DynamoLog) Append(ctx context.Context, phone string, msgs []model.Message) error {
	batch := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	for i, m := range msgs {
		item := map[string]types.AttributeValue{
			"PK":      &types.AttributeValueMemberS{Value: convPK(phone)},
			"SK":      &types.AttributeValueMemberS{Value: msgSK(m.Timestamp, i, batch)},
			"role":    &types.AttributeValueMemberS{Value: string(m.Role)},
			"content": &types.AttributeValueMemberS{Value: m.Content},
			"ts":      &types.AttributeValueMemberS{Value: m.Timestamp.UTC().Format(time.RFC3339Nano)},
		}
		if l.retention > 0 {
			item["ttl"] = &types.AttributeValueMemberN{Value: strconv.FormatInt(m.Timestamp.Add(l.retention).Unix(), 10)}
		}
		if _, err := l.api.PutItem(ctx, &dynamodb.PutItemInput{
			TableName: aws.String(l.table),
			Item:      item,
		}); err != nil {
			return fmt.Errorf("memory: append message: %w", err)
		}
	}
	return nil
}

// Recent reads newest first so the limit keeps the latest messages, then
// returns them oldest first.
func (l *DynamoLog) Recent(ctx context.Context, phone string, limit int) ([]model.Message, error) {
	out, err := l.api.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(l.table),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     &types.AttributeValueMemberS{Value: convPK(phone)},
			":prefix": &types.AttributeValueMemberS{Value: skPrefixMsg},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(int32(limit)),
	})
	if err != nil {
		return nil, fmt.Errorf("memory: query messages: %w", err)
	}

	msgs := make([]model.Message, 0, len(out.Items))
	for _, item := range out.Items {
		m, err := itemToMessage(item)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	slices.Reverse(msgs)
	return msgs, nil
}

func itemToMessage(item map[string]types.AttributeValue) (model.Message, error) {
	role, err := strAttr(item, "role")
	if err != nil {
		return model.Message{}, err
	}
	content, err := strAttr(item, "content")
	if err != nil {
		return model.Message{}, err
	}
	m := model.Message{Role: model.Role(role), Content: content}
	if ts, err := strAttr(item, "ts"); err == nil {
		m.Timestamp, _ = time.Parse(time.RFC3339Nano, ts)
	}
	return m, nil
}

func strAttr(item map[string]types.AttributeValue, key string) (string, error) {
	v, ok := item[key]
	if !ok {
		return "", fmt.Errorf("memory: missing attribute %q", key)
	}
	s, ok := v.(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("memory: attribute %q is not a string", key)
	}
	return s.Value, nil
}
