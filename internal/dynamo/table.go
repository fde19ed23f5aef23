package dynamo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/rs/zerolog/log"

	"stealthcompany.com/wardbook/internal/kv"
)

// ClassificationIndexes are the attributes that get a GSI
var ClassificationIndexes = []string{"department_status", "department_role"}

// CreateTableInput describes the record table: pk/sk primary key and one
// GSI per classification attribute, hashed on the attribute and ranged on pk
func CreateTableInput(table string) *dynamodb.CreateTableInput {
	attrs := []types.AttributeDefinition{
		{AttributeName: aws.String(kv.AttrPK), AttributeType: types.ScalarAttributeTypeS},
		{AttributeName: aws.String(kv.AttrSK), AttributeType: types.ScalarAttributeTypeS},
	}
	var gsis []types.GlobalSecondaryIndex
	for _, attr := range ClassificationIndexes {
		attrs = append(attrs, types.AttributeDefinition{
			AttributeName: aws.String(attr),
			AttributeType: types.ScalarAttributeTypeS,
		})
		gsis = append(gsis, types.GlobalSecondaryIndex{
			IndexName: aws.String(IndexName(attr)),
			KeySchema: []types.KeySchemaElement{
				{AttributeName: aws.String(attr), KeyType: types.KeyTypeHash},
				{AttributeName: aws.String(kv.AttrPK), KeyType: types.KeyTypeRange},
			},
			Projection: &types.Projection{ProjectionType: types.ProjectionTypeAll},
		})
	}

	return &dynamodb.CreateTableInput{
		TableName:            aws.String(table),
		AttributeDefinitions: attrs,
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String(kv.AttrPK), KeyType: types.KeyTypeHash},
			{AttributeName: aws.String(kv.AttrSK), KeyType: types.KeyTypeRange},
		},
		GlobalSecondaryIndexes: gsis,
		BillingMode:            types.BillingModePayPerRequest,
	}
}

// EnsureTable creates the record table if it does not exist and waits until it is active
func EnsureTable(ctx context.Context, client *dynamodb.Client, table string, wait time.Duration) error {
	_, err := client.CreateTable(ctx, CreateTableInput(table))
	if err != nil {
		var inUse *types.ResourceInUseException
		if !errors.As(err, &inUse) {
			return fmt.Errorf("create table %s: %w", table, err)
		}
		log.Info().Str("table", table).Msg("Table already exists")
	} else {
		log.Info().Str("table", table).Msg("Table creation requested")
	}

	waiter := dynamodb.NewTableExistsWaiter(client)
	if err := waiter.Wait(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(table)}, wait); err != nil {
		return fmt.Errorf("wait for table %s: %w", table, err)
	}
	log.Info().Str("table", table).Msg("Table is active")
	return nil
}
