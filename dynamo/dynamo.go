// Copyright 2025 Vaultbench, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package dynamo stores per-invocation benchmark metric records in
// DynamoDB and reads them back for reporting.
package dynamo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/client"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbattribute"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"
	"github.com/pkg/errors"

	"github.com/vaultbench/vaultbench/extfunc"
	"github.com/vaultbench/vaultbench/logger"
)

// DefaultTable is the metric table used when none is configured.
const DefaultTable = "vaultbench_metrics"

// MetricRecord is one invocation's row in the metric table. query_id is
// the hash key; sk orders records within a query by batch, instance, and
// invocation so one warehouse query reads back as a contiguous, ordered
// range.
type MetricRecord struct {
	QueryID            string  `dynamodbav:"query_id"`
	SortKey            string  `dynamodbav:"sk"`
	BatchID            string  `dynamodbav:"batch_id"`
	BatchSize          int     `dynamodbav:"batch_size"`
	Operation          string  `dynamodbav:"operation"`
	Mode               string  `dynamodbav:"mode"`
	DurationMs         int64   `dynamodbav:"duration_ms"`
	UniqueValues       int     `dynamodbav:"unique_values"`
	DedupPct           float64 `dynamodbav:"dedup_pct"`
	VaultCalls         int     `dynamodbav:"vault_calls"`
	VaultWallMs        int64   `dynamodbav:"vault_wall_ms"`
	CallMinMs          int64   `dynamodbav:"call_min_ms"`
	CallAvgMs          int64   `dynamodbav:"call_avg_ms"`
	CallMaxMs          int64   `dynamodbav:"call_max_ms"`
	OverheadMs         int64   `dynamodbav:"overhead_ms"`
	Errors             int     `dynamodbav:"errors"`
	BenchmarkConfig    string  `dynamodbav:"benchmark_config"`
	InvocationNum      int64   `dynamodbav:"invocation_num"`
	InstanceID         string  `dynamodbav:"instance_id"`
	ReceiveTimestampNs int64   `dynamodbav:"receive_timestamp_ns"`
}

// NewMetricRecord flattens a Report into its stored form.
func NewMetricRecord(r *extfunc.Report) *MetricRecord {
	rec := &MetricRecord{
		QueryID:            r.QueryID,
		SortKey:            fmt.Sprintf("%s#%s#%d", r.BatchID, r.InstanceID, r.Invocation),
		BatchID:            r.BatchID,
		BatchSize:          r.BatchSize,
		Operation:          r.Operation,
		Mode:               r.Mode,
		DurationMs:         r.DurationMs,
		OverheadMs:         r.OverheadMs,
		BenchmarkConfig:    r.Config,
		InvocationNum:      r.Invocation,
		InstanceID:         r.InstanceID,
		ReceiveTimestampNs: r.ReceiveNs,
	}
	if r.Vault != nil {
		rec.UniqueValues = r.Vault.UniqueValues
		rec.DedupPct = r.Vault.DedupPct
		rec.VaultCalls = r.Vault.Calls
		rec.VaultWallMs = r.Vault.WallMillis
		rec.CallMinMs = r.Vault.CallMinMillis
		rec.CallAvgMs = r.Vault.CallAvgMillis
		rec.CallMaxMs = r.Vault.CallMaxMillis
		rec.Errors = r.Vault.Errors
	}
	return rec
}

// Ensure Store can serve as the handler's metric sink.
var _ extfunc.MetricSink = (*Store)(nil)

// Store reads and writes metric records.
type Store struct {
	Log        logger.Logger
	Table      string
	AWSRegion  string
	AWSProfile string

	session *session.Session
	db      dynamodbiface.DynamoDBAPI
}

// NewStore returns an unopened Store for the given table. An empty table
// name selects DefaultTable.
func NewStore(table string) *Store {
	if table == "" {
		table = DefaultTable
	}
	return &Store{
		Log:   logger.NopLogger,
		Table: table,
	}
}

func (s *Store) initAWS() error {
	s.Log.Infof("Initializing AWS session")
	config := &aws.Config{
		// retry on ephemeral AWS errors
		Retryer: client.DefaultRetryer{NumMaxRetries: 10},
	}
	if len(s.AWSProfile) > 0 {
		s.Log.Infof("Overriding default AWS profile %s", s.AWSProfile)
		config.Credentials = credentials.NewSharedCredentials("", s.AWSProfile)
	}
	if len(s.AWSRegion) > 0 {
		s.Log.Infof("Overriding default AWS region: %s", s.AWSRegion)
		config.Region = aws.String(s.AWSRegion)
	}
	sess, err := session.NewSession(config)
	if err != nil {
		return errors.Wrap(err, "creating AWS session")
	}
	s.session = sess
	s.db = dynamodb.New(sess)
	return nil
}

// Open initializes the DynamoDB client.
func (s *Store) Open() error {
	// allow mocking of AWS dependencies in unit tests
	if s.db == nil {
		if err := s.initAWS(); err != nil {
			return err
		}
	}
	if len(s.Table) == 0 {
		return errors.New("missing required table name")
	}
	return nil
}

// Put writes one metric record.
func (s *Store) Put(ctx context.Context, rec *MetricRecord) error {
	item, err := dynamodbattribute.MarshalMap(rec)
	if err != nil {
		return errors.Wrap(err, "marshaling metric record")
	}
	_, err = s.db.PutItemWithContext(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.Table),
		Item:      item,
	})
	return errors.Wrap(err, "writing metric record")
}

// Record implements extfunc.MetricSink.
func (s *Store) Record(ctx context.Context, r *extfunc.Report) error {
	return s.Put(ctx, NewMetricRecord(r))
}

// QueryByQueryID returns every metric record stored for one warehouse
// query, in sort-key order, paging through large result sets.
func (s *Store) QueryByQueryID(ctx context.Context, queryID string) ([]MetricRecord, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(s.Table),
		KeyConditionExpression: aws.String("query_id = :qid"),
		ExpressionAttributeValues: map[string]*dynamodb.AttributeValue{
			":qid": {S: aws.String(queryID)},
		},
	}

	var records []MetricRecord
	var pageErr error
	err := s.db.QueryPagesWithContext(ctx, input, func(page *dynamodb.QueryOutput, lastPage bool) bool {
		var recs []MetricRecord
		if pageErr = dynamodbattribute.UnmarshalListOfMaps(page.Items, &recs); pageErr != nil {
			return false
		}
		records = append(records, recs...)
		return true
	})
	if err == nil {
		err = pageErr
	}
	if err != nil {
		return nil, errors.Wrap(err, "querying metric records")
	}
	return records, nil
}
