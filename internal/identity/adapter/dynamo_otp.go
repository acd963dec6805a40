package adapter

import (
	"context"
	"fmt"
	"time"

	"github.com/bagly/claim-intake/internal/domain"
	"github.com/bagly/claim-intake/internal/dynamo"
	"github.com/bagly/claim-intake/internal/identity/app"
)

// otpDynamoDB is the narrow subset of the DynamoDB client the OTP store
// calls. *dynamodb.Client satisfies it.
type otpDynamoDB interface {
	PutItem(ctx context.Context, params *dynamo.PutItemInput, optFns ...func(*dynamo.Options)) (*dynamo.PutItemOutput, error)
	Query(ctx context.Context, params *dynamo.QueryInput, optFns ...func(*dynamo.Options)) (*dynamo.QueryOutput, error)
	UpdateItem(ctx context.Context, params *dynamo.UpdateItemInput, optFns ...func(*dynamo.Options)) (*dynamo.UpdateItemOutput, error)
}

// otpRetention is how long after expiry a record stays before the table's
// TTL sweeper may remove it.
const otpRetention = 24 * time.Hour

// otpItem is keyed by account_id (partition) and sk (sort). sk begins with
// the zero-padded creation time in milliseconds, so a descending query
// returns the newest records first.
type otpItem struct {
	AccountID string `dynamodbav:"account_id"`
	SK        string `dynamodbav:"sk"`
	ID        string `dynamodbav:"id"`
	Code      string `dynamodbav:"code"`
	CreatedAt int64  `dynamodbav:"created_at"`
	ExpiresAt int64  `dynamodbav:"expires_at"`
	Consumed  bool   `dynamodbav:"consumed"`
	TTL       int64  `dynamodbav:"ttl"`
}

// DynamoOTPStore implements app.OTPStore on DynamoDB.
type DynamoOTPStore struct {
	db        otpDynamoDB
	tableName string
}

// NewDynamoOTPStore creates a DynamoOTPStore.
func NewDynamoOTPStore(db otpDynamoDB, tableName string) *DynamoOTPStore {
	return &DynamoOTPStore{db: db, tableName: tableName}
}

func otpSortKey(createdAt time.Time, id string) string {
	return fmt.Sprintf("%013d#%s", domain.ToMillis(createdAt), id)
}

func otpKey(record app.OTPRecord) map[string]dynamo.AttributeValue {
	return map[string]dynamo.AttributeValue{
		"account_id": &dynamo.AttributeValueMemberS{Value: record.AccountID.String()},
		"sk":         &dynamo.AttributeValueMemberS{Value: otpSortKey(record.CreatedAt, record.ID)},
	}
}

func (s *DynamoOTPStore) Create(ctx context.Context, record app.OTPRecord) error {
	ctx, span := startSpan(ctx, "dynamo.otp.create", "dynamodb", "PutItem")
	defer span.End()

	av, err := dynamo.MarshalMap(otpItem{
		AccountID: record.AccountID.String(),
		SK:        otpSortKey(record.CreatedAt, record.ID),
		ID:        record.ID,
		Code:      record.Code,
		CreatedAt: domain.ToMillis(record.CreatedAt),
		ExpiresAt: domain.ToMillis(record.ExpiresAt),
		Consumed:  record.Consumed,
		TTL:       record.ExpiresAt.Add(otpRetention).Unix(),
	})
	if err != nil {
		return failSpan(span, fmt.Errorf("otp store: marshal item: %w", err))
	}

	_, err = s.db.PutItem(ctx, &dynamo.PutItemInput{
		TableName:           &s.tableName,
		Item:                av,
		ConditionExpression: dynamo.String("attribute_not_exists(sk)"),
	})
	if err != nil {
		if dynamo.IsConditionalCheckFailed(err) {
			return fmt.Errorf("otp store: create: %w", domain.ErrAlreadyExists)
		}
		return failSpan(span, fmt.Errorf("otp store: create: %w", err))
	}
	return nil
}

// FindActive queries the account's partition newest first and returns the
// first record passing the filter, following pagination as needed.
func (s *DynamoOTPStore) FindActive(ctx context.Context, accountID domain.AccountID, code string, now time.Time) (*app.OTPRecord, error) {
	ctx, span := startSpan(ctx, "dynamo.otp.find_active", "dynamodb", "Query")
	defer span.End()

	filter := dynamo.Name("code").Equal(dynamo.Value(code)).
		And(dynamo.Name("consumed").Equal(dynamo.Value(false))).
		And(dynamo.Name("expires_at").GreaterThan(dynamo.Value(domain.ToMillis(now))))

	expr, err := dynamo.NewExpression().
		WithKeyCondition(dynamo.KeyEqual(dynamo.Key("account_id"), dynamo.Value(accountID.String()))).
		WithFilter(filter).
		Build()
	if err != nil {
		return nil, failSpan(span, fmt.Errorf("otp store: build query: %w", err))
	}

	var startKey map[string]dynamo.AttributeValue
	for {
		out, err := s.db.Query(ctx, &dynamo.QueryInput{
			TableName:                 &s.tableName,
			KeyConditionExpression:    expr.KeyCondition(),
			FilterExpression:          expr.Filter(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
			ScanIndexForward:          dynamo.Bool(false),
			ConsistentRead:            dynamo.Bool(true),
			ExclusiveStartKey:         startKey,
		})
		if err != nil {
			return nil, failSpan(span, fmt.Errorf("otp store: query: %w", err))
		}

		if len(out.Items) > 0 {
			var items []otpItem
			if err := dynamo.UnmarshalListOfMaps(out.Items[:1], &items); err != nil {
				return nil, failSpan(span, fmt.Errorf("otp store: unmarshal: %w", err))
			}
			return decodeOTP(items[0])
		}

		if len(out.LastEvaluatedKey) == 0 {
			return nil, fmt.Errorf("otp store: find active: %w", domain.ErrNotFound)
		}
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("otp store: find active: %w", err)
		}
		startKey = out.LastEvaluatedKey
	}
}

// Consume sets consumed only while it is still false.
func (s *DynamoOTPStore) Consume(ctx context.Context, record app.OTPRecord) error {
	ctx, span := startSpan(ctx, "dynamo.otp.consume", "dynamodb", "UpdateItem")
	defer span.End()

	expr, err := dynamo.NewExpression().
		WithUpdate(dynamo.Set(dynamo.Name("consumed"), dynamo.Value(true))).
		WithCondition(dynamo.Name("consumed").Equal(dynamo.Value(false))).
		Build()
	if err != nil {
		return failSpan(span, fmt.Errorf("otp store: build update: %w", err))
	}

	_, err = s.db.UpdateItem(ctx, &dynamo.UpdateItemInput{
		TableName:                 &s.tableName,
		Key:                       otpKey(record),
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		if dynamo.IsConditionalCheckFailed(err) {
			return fmt.Errorf("otp store: consume: %w", domain.ErrOTPConsumed)
		}
		return failSpan(span, fmt.Errorf("otp store: consume: %w", err))
	}
	return nil
}

func decodeOTP(item otpItem) (*app.OTPRecord, error) {
	accountID, err := domain.NewAccountID(item.AccountID)
	if err != nil {
		return nil, fmt.Errorf("otp store: decode: %w", err)
	}
	return &app.OTPRecord{
		ID:        item.ID,
		AccountID: accountID,
		Code:      item.Code,
		CreatedAt: domain.FromMillis(item.CreatedAt),
		ExpiresAt: domain.FromMillis(item.ExpiresAt),
		Consumed:  item.Consumed,
	}, nil
}
