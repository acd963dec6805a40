// Package dynamo provides the shared DynamoDB client. Only this package
// imports the DynamoDB SDK; adapters use the re-exported types and helpers.
package dynamo

import (
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Client wraps the AWS DynamoDB SDK client.
// Adapters access the underlying SDK client via the DB field.
type Client struct {
	DB *dynamodb.Client
}

// NewClient creates a DynamoDB client from a loaded AWS config. A non-nil
// baseEndpoint redirects requests (LocalStack).
func NewClient(awsCfg aws.Config, baseEndpoint *string) *Client {
	var opts []func(*dynamodb.Options)
	if baseEndpoint != nil {
		opts = append(opts, func(o *dynamodb.Options) {
			o.BaseEndpoint = baseEndpoint
		})
	}
	return &Client{DB: dynamodb.NewFromConfig(awsCfg, opts...)}
}

// ---------------------------------------------------------------------------
// Type aliases so adapters import dynamo.GetItemInput instead of the SDK.
// ---------------------------------------------------------------------------

type (
	GetItemInput     = dynamodb.GetItemInput
	GetItemOutput    = dynamodb.GetItemOutput
	PutItemInput     = dynamodb.PutItemInput
	PutItemOutput    = dynamodb.PutItemOutput
	QueryInput       = dynamodb.QueryInput
	QueryOutput      = dynamodb.QueryOutput
	UpdateItemInput  = dynamodb.UpdateItemInput
	UpdateItemOutput = dynamodb.UpdateItemOutput

	TransactWriteItemsInput  = dynamodb.TransactWriteItemsInput
	TransactWriteItemsOutput = dynamodb.TransactWriteItemsOutput
	TransactWriteItem        = types.TransactWriteItem
	Put                      = types.Put
	Update                   = types.Update
	Delete                   = types.Delete
	ConditionCheck           = types.ConditionCheck

	AttributeValue           = types.AttributeValue
	AttributeValueMemberS    = types.AttributeValueMemberS
	AttributeValueMemberN    = types.AttributeValueMemberN
	AttributeValueMemberBOOL = types.AttributeValueMemberBOOL
	ReturnValue              = types.ReturnValue

	// Options is re-exported so adapter-defined interfaces can declare optFns.
	Options = dynamodb.Options
)

// ReturnValuesAllNew asks UpdateItem to return the item after the update.
const ReturnValuesAllNew = types.ReturnValueAllNew

// ---------------------------------------------------------------------------
// Expression builder re-exports.
// ---------------------------------------------------------------------------

type (
	Expression       = expression.Expression
	ConditionBuilder = expression.ConditionBuilder
	KeyCondition     = expression.KeyConditionBuilder
	UpdateBuilder    = expression.UpdateBuilder
)

var (
	NewExpression = expression.NewBuilder
	Name          = expression.Name
	Value         = expression.Value
	Key           = expression.Key
	KeyEqual      = expression.KeyEqual
	Set           = expression.Set
)

// ---------------------------------------------------------------------------
// AWS helper re-exports.
// ---------------------------------------------------------------------------

var (
	Bool   = aws.Bool
	String = aws.String

	MarshalMap   = attributevalue.MarshalMap
	UnmarshalMap = attributevalue.UnmarshalMap
	// UnmarshalListOfMaps decodes Query result pages.
	UnmarshalListOfMaps = attributevalue.UnmarshalListOfMaps
)

// ---------------------------------------------------------------------------
// Error classification helpers.
// ---------------------------------------------------------------------------

// IsConditionalCheckFailed reports whether err is a DynamoDB
// ConditionalCheckFailedException.
func IsConditionalCheckFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}

// ErrConditionalCheckFailed builds a ConditionalCheckFailedException for
// adapter tests. DynamoDB is the only production source of this error.
func ErrConditionalCheckFailed() error {
	return &types.ConditionalCheckFailedException{
		Message: aws.String("The conditional request failed"),
	}
}

// ErrTransactionCanceled builds a TransactionCanceledException for adapter
// tests. Each code is one item's cancellation reason; "" means that item
// passed.
func ErrTransactionCanceled(codes ...string) error {
	reasons := make([]types.CancellationReason, len(codes))
	for i, code := range codes {
		if code != "" {
			c := code
			reasons[i] = types.CancellationReason{Code: &c}
		}
	}
	msg := "Transaction cancelled"
	return &types.TransactionCanceledException{
		Message:             &msg,
		CancellationReasons: reasons,
	}
}

// IsTransactionCanceledException reports whether err is a DynamoDB
// TransactionCanceledException and, if so, returns one reason code per item.
func IsTransactionCanceledException(err error) ([]string, bool) {
	var tce *types.TransactionCanceledException
	if !errors.As(err, &tce) {
		return nil, false
	}
	reasons := make([]string, len(tce.CancellationReasons))
	for i, r := range tce.CancellationReasons {
		if r.Code != nil {
			reasons[i] = *r.Code
		}
	}
	return reasons, true
}
