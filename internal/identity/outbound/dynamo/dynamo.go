package dynamo

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/shandysiswandi/ayurclinic/internal/identity/entity"
	"github.com/shandysiswandi/ayurclinic/internal/pkg/goerror"
	"github.com/shandysiswandi/ayurclinic/internal/pkg/instrument"
	"github.com/shandysiswandi/ayurclinic/internal/pkg/valueobject"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultTable     = "identity_otp_tokens"
	DefaultRetention = time.Hour

	attrPK  = "pk"
	attrTTL = "ttl"
)

// item is the stored shape of a token. pk is "email#purpose"; times are unix
// microseconds except ttl, which DynamoDB expects in seconds.
type item struct {
	PK         string `dynamodbav:"pk"`
	ID         int64  `dynamodbav:"id"`
	Email      string `dynamodbav:"email"`
	CodeDigest string `dynamodbav:"code_digest"`
	Purpose    string `dynamodbav:"purpose"`
	ExpiresAt  int64  `dynamodbav:"expires_at"`
	Attempts   int    `dynamodbav:"attempts"`
	Metadata   string `dynamodbav:"metadata"`
	CreatedAt  int64  `dynamodbav:"created_at"`
	TTL        int64  `dynamodbav:"ttl"`
}

// Dynamo stores OTP tokens in a DynamoDB table keyed by (email, purpose).
// Uniqueness comes from conditional writes; expired items are removed by the
// table TTL.
type Dynamo struct {
	client    *dynamodb.Client
	table     string
	retention time.Duration
	ins       instrument.Instrumentation
}

func NewDynamo(client *dynamodb.Client, table string, retention time.Duration, ins instrument.Instrumentation) *Dynamo {
	if table == "" {
		table = DefaultTable
	}
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Dynamo{client: client, table: table, retention: retention, ins: ins}
}

func partitionKey(email string, purpose entity.OTPPurpose) string {
	return email + "#" + purpose.String()
}

func keyOf(email string, purpose entity.OTPPurpose) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		attrPK: &types.AttributeValueMemberS{Value: partitionKey(email, purpose)},
	}
}

func isConditionFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}

func (d *Dynamo) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return d.ins.Tracer("identity.outbound.dynamo").Start(ctx, name)
}

func (d *Dynamo) endSpan(span trace.Span, err error) {
	if err != nil && !errors.Is(err, goerror.ErrNotFound) && !errors.Is(err, goerror.ErrConflict) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// EnsureTable creates the token table and enables its TTL attribute. An
// existing table is left as is.
func (d *Dynamo) EnsureTable(ctx context.Context) (err error) {
	ctx, span := d.startSpan(ctx, "EnsureTable")
	defer func() { d.endSpan(span, err) }()

	_, err = d.client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName:   aws.String(d.table),
		BillingMode: types.BillingModePayPerRequest,
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String(attrPK), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String(attrPK), KeyType: types.KeyTypeHash},
		},
	})
	var inUse *types.ResourceInUseException
	if err != nil && !errors.As(err, &inUse) {
		return err
	}

	waiter := dynamodb.NewTableExistsWaiter(d.client)
	if err = waiter.Wait(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(d.table)}, time.Minute); err != nil {
		return err
	}

	if _, ttlErr := d.client.UpdateTimeToLive(ctx, &dynamodb.UpdateTimeToLiveInput{
		TableName: aws.String(d.table),
		TimeToLiveSpecification: &types.TimeToLiveSpecification{
			AttributeName: aws.String(attrTTL),
			Enabled:       aws.Bool(true),
		},
	}); ttlErr != nil {
		slog.WarnContext(ctx, "failed to enable dynamodb ttl", "table", d.table, "error", ttlErr)
	}

	return nil
}

func (d *Dynamo) CreateOTP(ctx context.Context, token entity.OTPToken, now time.Time) (err error) {
	ctx, span := d.startSpan(ctx, "CreateOTP")
	defer func() { d.endSpan(span, err) }()

	metadata := token.Metadata
	if metadata == nil {
		metadata = valueobject.JSONMap{}
	}
	meta, err := json.Marshal(metadata)
	if err != nil {
		return err
	}

	av, err := attributevalue.MarshalMap(item{
		PK:         partitionKey(token.Email, token.Purpose),
		ID:         token.ID,
		Email:      token.Email,
		CodeDigest: token.CodeDigest,
		Purpose:    token.Purpose.String(),
		ExpiresAt:  token.ExpiresAt.UnixMicro(),
		Attempts:   token.Attempts,
		Metadata:   string(meta),
		CreatedAt:  token.CreatedAt.UnixMicro(),
		TTL:        token.ExpiresAt.Add(d.retention).Unix(),
	})
	if err != nil {
		return err
	}

	_, err = d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(d.table),
		Item:                av,
		ConditionExpression: aws.String("attribute_not_exists(pk) OR expires_at < :now"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":now": &types.AttributeValueMemberN{Value: strconv.FormatInt(now.UnixMicro(), 10)},
		},
	})
	if isConditionFailed(err) {
		return goerror.ErrConflict
	}

	return err
}

func (d *Dynamo) GetOTP(ctx context.Context, email string, purpose entity.OTPPurpose, codeDigest string) (_ *entity.OTPToken, err error) {
	ctx, span := d.startSpan(ctx, "GetOTP")
	defer func() { d.endSpan(span, err) }()

	out, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(d.table),
		Key:            keyOf(email, purpose),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, goerror.ErrNotFound
	}

	var it item
	if err := attributevalue.UnmarshalMap(out.Item, &it); err != nil {
		return nil, err
	}
	if it.CodeDigest != codeDigest {
		return nil, goerror.ErrNotFound
	}

	var metadata valueobject.JSONMap
	if err := metadata.Scan(it.Metadata); err != nil {
		return nil, err
	}

	return &entity.OTPToken{
		ID:         it.ID,
		Email:      it.Email,
		CodeDigest: it.CodeDigest,
		Purpose:    entity.ParseOTPPurpose(it.Purpose),
		ExpiresAt:  time.UnixMicro(it.ExpiresAt).UTC(),
		Attempts:   it.Attempts,
		Metadata:   metadata,
		CreatedAt:  time.UnixMicro(it.CreatedAt).UTC(),
	}, nil
}

func (d *Dynamo) IncrementOTPAttempts(ctx context.Context, token *entity.OTPToken) (_ int, err error) {
	ctx, span := d.startSpan(ctx, "IncrementOTPAttempts")
	defer func() { d.endSpan(span, err) }()

	out, err := d.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(d.table),
		Key:                 keyOf(token.Email, token.Purpose),
		UpdateExpression:    aws.String("ADD attempts :one"),
		ConditionExpression: aws.String("id = :id"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":one": &types.AttributeValueMemberN{Value: "1"},
			":id":  &types.AttributeValueMemberN{Value: strconv.FormatInt(token.ID, 10)},
		},
		ReturnValues: types.ReturnValueUpdatedNew,
	})
	if isConditionFailed(err) {
		return 0, goerror.ErrNotFound
	}
	if err != nil {
		return 0, err
	}

	var updated struct {
		Attempts int `dynamodbav:"attempts"`
	}
	if err := attributevalue.UnmarshalMap(out.Attributes, &updated); err != nil {
		return 0, err
	}

	return updated.Attempts, nil
}

func (d *Dynamo) DeleteOTP(ctx context.Context, token *entity.OTPToken) (err error) {
	ctx, span := d.startSpan(ctx, "DeleteOTP")
	defer func() { d.endSpan(span, err) }()

	_, err = d.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:           aws.String(d.table),
		Key:                 keyOf(token.Email, token.Purpose),
		ConditionExpression: aws.String("id = :id"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":id": &types.AttributeValueMemberN{Value: strconv.FormatInt(token.ID, 10)},
		},
	})
	if isConditionFailed(err) {
		return goerror.ErrNotFound
	}

	return err
}

// SweepExpiredOTP is a no-op: the table TTL attribute removes expired items.
func (d *Dynamo) SweepExpiredOTP(context.Context, time.Time) (int64, error) {
	return 0, nil
}
