package adapter

import (
	"context"
	"fmt"
	"time"

	"github.com/bagly/claim-intake/internal/domain"
	"github.com/bagly/claim-intake/internal/dynamo"
	"github.com/bagly/claim-intake/internal/identity/app"
)

// accountDynamoDB is the narrow subset of the DynamoDB client the account
// store calls. *dynamodb.Client satisfies it.
type accountDynamoDB interface {
	GetItem(ctx context.Context, params *dynamo.GetItemInput, optFns ...func(*dynamo.Options)) (*dynamo.GetItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamo.UpdateItemInput, optFns ...func(*dynamo.Options)) (*dynamo.UpdateItemOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamo.TransactWriteItemsInput, optFns ...func(*dynamo.Options)) (*dynamo.TransactWriteItemsOutput, error)
}

// The accounts table holds three item kinds under one partition key "pk":
// the account itself (account#<id>) and two uniqueness guards
// (cpf#<cpf>, email#<email>) pointing back at it.
const (
	accountPKPrefix = "account#"
	cpfPKPrefix     = "cpf#"
	emailPKPrefix   = "email#"

	notExistsPK = "attribute_not_exists(pk)"
)

type accountItem struct {
	PK        string `dynamodbav:"pk"`
	AccountID string `dynamodbav:"account_id"`
	CPF       string `dynamodbav:"cpf"`
	Email     string `dynamodbav:"email"`
	Name      string `dynamodbav:"name,omitempty"`
	Phone     string `dynamodbav:"phone,omitempty"`
	CreatedAt string `dynamodbav:"created_at"`
	UpdatedAt string `dynamodbav:"updated_at"`
}

type guardItem struct {
	PK        string `dynamodbav:"pk"`
	AccountID string `dynamodbav:"account_id"`
}

// DynamoAccountStore implements app.AccountStore on a single DynamoDB table.
type DynamoAccountStore struct {
	db        accountDynamoDB
	tableName string
}

// NewDynamoAccountStore creates a DynamoAccountStore.
func NewDynamoAccountStore(db accountDynamoDB, tableName string) *DynamoAccountStore {
	return &DynamoAccountStore{db: db, tableName: tableName}
}

func pkKey(pk string) map[string]dynamo.AttributeValue {
	return map[string]dynamo.AttributeValue{"pk": &dynamo.AttributeValueMemberS{Value: pk}}
}

// FindByCPF resolves the CPF guard item, then reads the account.
func (s *DynamoAccountStore) FindByCPF(ctx context.Context, cpf domain.CPF) (*app.Account, error) {
	ctx, span := startSpan(ctx, "dynamo.accounts.find_by_cpf", "dynamodb", "GetItem")
	defer span.End()

	out, err := s.db.GetItem(ctx, &dynamo.GetItemInput{
		TableName:      &s.tableName,
		Key:            pkKey(cpfPKPrefix + cpf.String()),
		ConsistentRead: dynamo.Bool(true),
	})
	if err != nil {
		return nil, failSpan(span, fmt.Errorf("account store: find by cpf: %w", err))
	}
	if out.Item == nil {
		return nil, fmt.Errorf("account store: find by cpf: %w", domain.ErrNotFound)
	}

	var guard guardItem
	if err := dynamo.UnmarshalMap(out.Item, &guard); err != nil {
		return nil, failSpan(span, fmt.Errorf("account store: unmarshal cpf guard: %w", err))
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("account store: find by cpf: %w", err)
	}

	id, err := domain.NewAccountID(guard.AccountID)
	if err != nil {
		return nil, failSpan(span, fmt.Errorf("account store: cpf guard: %w", err))
	}
	return s.GetByID(ctx, id)
}

// GetByID reads an account with a strongly consistent read.
func (s *DynamoAccountStore) GetByID(ctx context.Context, id domain.AccountID) (*app.Account, error) {
	ctx, span := startSpan(ctx, "dynamo.accounts.get_by_id", "dynamodb", "GetItem")
	defer span.End()

	out, err := s.db.GetItem(ctx, &dynamo.GetItemInput{
		TableName:      &s.tableName,
		Key:            pkKey(accountPKPrefix + id.String()),
		ConsistentRead: dynamo.Bool(true),
	})
	if err != nil {
		return nil, failSpan(span, fmt.Errorf("account store: get by id: %w", err))
	}
	if out.Item == nil {
		return nil, fmt.Errorf("account store: get by id: %w", domain.ErrNotFound)
	}

	account, err := decodeAccount(out.Item)
	if err != nil {
		return nil, failSpan(span, fmt.Errorf("account store: get by id: %w", err))
	}
	return account, nil
}

// Create writes the account and both guard items in one transaction.
func (s *DynamoAccountStore) Create(ctx context.Context, account app.Account) error {
	ctx, span := startSpan(ctx, "dynamo.accounts.create", "dynamodb", "TransactWriteItems")
	defer span.End()

	item, err := dynamo.MarshalMap(encodeAccount(account))
	if err != nil {
		return failSpan(span, fmt.Errorf("account store: marshal account: %w", err))
	}
	cpfGuard, err := dynamo.MarshalMap(guardItem{PK: cpfPKPrefix + account.CPF.String(), AccountID: account.ID.String()})
	if err != nil {
		return failSpan(span, fmt.Errorf("account store: marshal cpf guard: %w", err))
	}
	emailGuard, err := dynamo.MarshalMap(guardItem{PK: emailPKPrefix + account.Email, AccountID: account.ID.String()})
	if err != nil {
		return failSpan(span, fmt.Errorf("account store: marshal email guard: %w", err))
	}

	_, err = s.db.TransactWriteItems(ctx, &dynamo.TransactWriteItemsInput{
		TransactItems: []dynamo.TransactWriteItem{
			{Put: &dynamo.Put{TableName: &s.tableName, Item: item, ConditionExpression: dynamo.String(notExistsPK)}},
			{Put: &dynamo.Put{TableName: &s.tableName, Item: cpfGuard, ConditionExpression: dynamo.String(notExistsPK)}},
			{Put: &dynamo.Put{TableName: &s.tableName, Item: emailGuard, ConditionExpression: dynamo.String(notExistsPK)}},
		},
	})
	if err != nil {
		return failSpan(span, fmt.Errorf("account store: create: %w",
			classifyTx(err, domain.ErrAlreadyExists, domain.ErrAlreadyExists, domain.ErrEmailInUse)))
	}
	return nil
}

// UpdateProfile applies the non-nil fields of update. An email change moves
// the email guard in the same transaction as the account update.
func (s *DynamoAccountStore) UpdateProfile(ctx context.Context, id domain.AccountID, update app.ProfileUpdate, now time.Time) (*app.Account, error) {
	current, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	ctx, span := startSpan(ctx, "dynamo.accounts.update_profile", "dynamodb", "UpdateItem")
	defer span.End()

	next := *current
	next.UpdatedAt = now.UTC()
	upd := dynamo.Set(dynamo.Name("updated_at"), dynamo.Value(formatTime(next.UpdatedAt)))
	if update.Name != nil {
		next.Name = *update.Name
		upd = upd.Set(dynamo.Name("name"), dynamo.Value(next.Name))
	}
	if update.Phone != nil {
		next.Phone = *update.Phone
		upd = upd.Set(dynamo.Name("phone"), dynamo.Value(next.Phone))
	}
	emailChanged := update.Email != nil && *update.Email != current.Email
	if emailChanged {
		next.Email = *update.Email
		upd = upd.Set(dynamo.Name("email"), dynamo.Value(next.Email))
	}

	expr, err := dynamo.NewExpression().
		WithUpdate(upd).
		WithCondition(dynamo.Name("pk").AttributeExists()).
		Build()
	if err != nil {
		return nil, failSpan(span, fmt.Errorf("account store: build update: %w", err))
	}

	key := pkKey(accountPKPrefix + id.String())

	if !emailChanged {
		_, err = s.db.UpdateItem(ctx, &dynamo.UpdateItemInput{
			TableName:                 &s.tableName,
			Key:                       key,
			UpdateExpression:          expr.Update(),
			ConditionExpression:       expr.Condition(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
		})
		if err != nil {
			if dynamo.IsConditionalCheckFailed(err) {
				return nil, fmt.Errorf("account store: update profile: %w", domain.ErrNotFound)
			}
			return nil, failSpan(span, fmt.Errorf("account store: update profile: %w", err))
		}
		return &next, nil
	}

	newGuard, err := dynamo.MarshalMap(guardItem{PK: emailPKPrefix + next.Email, AccountID: id.String()})
	if err != nil {
		return nil, failSpan(span, fmt.Errorf("account store: marshal email guard: %w", err))
	}

	_, err = s.db.TransactWriteItems(ctx, &dynamo.TransactWriteItemsInput{
		TransactItems: []dynamo.TransactWriteItem{
			{Update: &dynamo.Update{
				TableName:                 &s.tableName,
				Key:                       key,
				UpdateExpression:          expr.Update(),
				ConditionExpression:       expr.Condition(),
				ExpressionAttributeNames:  expr.Names(),
				ExpressionAttributeValues: expr.Values(),
			}},
			{Delete: &dynamo.Delete{TableName: &s.tableName, Key: pkKey(emailPKPrefix + current.Email)}},
			{Put: &dynamo.Put{TableName: &s.tableName, Item: newGuard, ConditionExpression: dynamo.String(notExistsPK)}},
		},
	})
	if err != nil {
		return nil, failSpan(span, fmt.Errorf("account store: update profile: %w",
			classifyTx(err, domain.ErrNotFound, nil, domain.ErrEmailInUse)))
	}
	return &next, nil
}

// classifyTx maps the first ConditionalCheckFailed reason to the error at
// the same index in perItem. Other failures are returned as is.
func classifyTx(err error, perItem ...error) error {
	reasons, ok := dynamo.IsTransactionCanceledException(err)
	if !ok {
		return err
	}
	for i, reason := range reasons {
		if reason == "ConditionalCheckFailed" && i < len(perItem) && perItem[i] != nil {
			return perItem[i]
		}
	}
	return fmt.Errorf("transaction canceled: %w", err)
}

func encodeAccount(a app.Account) accountItem {
	return accountItem{
		PK:        accountPKPrefix + a.ID.String(),
		AccountID: a.ID.String(),
		CPF:       a.CPF.String(),
		Email:     a.Email,
		Name:      a.Name,
		Phone:     a.Phone,
		CreatedAt: formatTime(a.CreatedAt),
		UpdatedAt: formatTime(a.UpdatedAt),
	}
}

func decodeAccount(av map[string]dynamo.AttributeValue) (*app.Account, error) {
	var item accountItem
	if err := dynamo.UnmarshalMap(av, &item); err != nil {
		return nil, fmt.Errorf("unmarshal account: %w", err)
	}

	id, err := domain.NewAccountID(item.AccountID)
	if err != nil {
		return nil, err
	}
	cpf, err := domain.ParseCPFDigits(item.CPF)
	if err != nil {
		return nil, err
	}
	createdAt, err := time.Parse(time.RFC3339Nano, item.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	updatedAt, err := time.Parse(time.RFC3339Nano, item.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}

	return &app.Account{
		ID:        id,
		CPF:       cpf,
		Email:     item.Email,
		Name:      item.Name,
		Phone:     item.Phone,
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
