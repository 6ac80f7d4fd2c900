// Copyright 2025 Vaultbench, Inc.
// SPDX-License-Identifier: Apache-2.0
package bench

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/client"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go/service/cloudwatchlogs/cloudwatchlogsiface"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/vaultbench/vaultbench/logger"
)

// defaultFetchConcurrency bounds how many log streams are read at once.
const defaultFetchConcurrency = 4

// logEvent is one CloudWatch log event. ts is milliseconds since epoch.
type logEvent struct {
	ts  int64
	msg string
}

// LogFetcher pulls metric lines out of a Lambda function's CloudWatch
// log group. Each concurrent Lambda instance writes its own log stream,
// so a benchmark run is scattered across many streams; the fetcher
// reads them in parallel and merges the events back into time order.
type LogFetcher struct {
	Log         logger.Logger
	Group       string
	AWSRegion   string
	AWSProfile  string
	Concurrency int

	session *session.Session
	cw      cloudwatchlogsiface.CloudWatchLogsAPI
}

// NewLogFetcher returns an unopened LogFetcher for the given log group.
func NewLogFetcher(group string) *LogFetcher {
	return &LogFetcher{
		Log:         logger.NopLogger,
		Group:       group,
		Concurrency: defaultFetchConcurrency,
	}
}

func (f *LogFetcher) initAWS() error {
	f.Log.Infof("Initializing AWS session")
	config := &aws.Config{
		// retry on ephemeral AWS errors
		Retryer: client.DefaultRetryer{NumMaxRetries: 10},
	}
	if len(f.AWSProfile) > 0 {
		f.Log.Infof("Overriding default AWS profile %s", f.AWSProfile)
		config.Credentials = credentials.NewSharedCredentials("", f.AWSProfile)
	}
	if len(f.AWSRegion) > 0 {
		f.Log.Infof("Overriding default AWS region: %s", f.AWSRegion)
		config.Region = aws.String(f.AWSRegion)
	}
	sess, err := session.NewSession(config)
	if err != nil {
		return errors.Wrap(err, "creating AWS session")
	}
	f.session = sess
	f.cw = cloudwatchlogs.New(sess)
	return nil
}

// Open initializes the CloudWatch Logs client.
func (f *LogFetcher) Open() error {
	// allow mocking of AWS dependencies in unit tests
	if f.cw == nil {
		if err := f.initAWS(); err != nil {
			return err
		}
	}
	if len(f.Group) == 0 {
		return errors.New("missing required log group name")
	}
	if f.Concurrency < 1 {
		f.Concurrency = defaultFetchConcurrency
	}
	return nil
}

// activeStreams returns the names of log streams with events at or after
// since. Streams are listed newest-first so the scan can stop at the
// first stream that went quiet before the window.
func (f *LogFetcher) activeStreams(ctx context.Context, since time.Time) ([]string, error) {
	sinceMs := aws.TimeUnixMilli(since)
	var streams []string
	err := f.cw.DescribeLogStreamsPagesWithContext(ctx, &cloudwatchlogs.DescribeLogStreamsInput{
		LogGroupName: aws.String(f.Group),
		OrderBy:      aws.String(cloudwatchlogs.OrderByLastEventTime),
		Descending:   aws.Bool(true),
	}, func(page *cloudwatchlogs.DescribeLogStreamsOutput, lastPage bool) bool {
		for _, s := range page.LogStreams {
			if s.LastEventTimestamp == nil || s.LogStreamName == nil {
				continue
			}
			if *s.LastEventTimestamp < sinceMs {
				return false
			}
			streams = append(streams, *s.LogStreamName)
		}
		return true
	})
	if err != nil {
		return nil, errors.Wrap(err, "describing log streams")
	}
	return streams, nil
}

// fetchEvents reads every METRIC event in [since, until] across all
// active streams and returns them sorted by event timestamp.
func (f *LogFetcher) fetchEvents(ctx context.Context, since, until time.Time) ([]logEvent, error) {
	if until.IsZero() {
		until = time.Now()
	}
	streams, err := f.activeStreams(ctx, since)
	if err != nil {
		return nil, err
	}
	f.Log.Debugf("fetching %d log streams from group %s", len(streams), f.Group)

	var (
		mu     sync.Mutex
		events []logEvent
	)
	sem := make(chan struct{}, f.Concurrency)
	var g errgroup.Group
	for _, name := range streams {
		name := name
		g.Go(func() error {
			sem <- struct{}{}
			defer func() { <-sem }()
			input := &cloudwatchlogs.FilterLogEventsInput{
				LogGroupName:   aws.String(f.Group),
				LogStreamNames: []*string{aws.String(name)},
				StartTime:      aws.Int64(aws.TimeUnixMilli(since)),
				EndTime:        aws.Int64(aws.TimeUnixMilli(until)),
				FilterPattern:  aws.String("METRIC"),
			}
			err := f.cw.FilterLogEventsPagesWithContext(ctx, input, func(page *cloudwatchlogs.FilterLogEventsOutput, lastPage bool) bool {
				mu.Lock()
				for _, ev := range page.Events {
					if ev.Message == nil {
						continue
					}
					events = append(events, logEvent{
						ts:  aws.Int64Value(ev.Timestamp),
						msg: aws.StringValue(ev.Message),
					})
				}
				mu.Unlock()
				return true
			})
			return errors.Wrapf(err, "filtering events in stream %s", name)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	sort.SliceStable(events, func(i, j int) bool { return events[i].ts < events[j].ts })
	return events, nil
}

// FetchLines returns the raw METRIC log lines in the window, oldest
// first.
func (f *LogFetcher) FetchLines(ctx context.Context, since, until time.Time) ([]string, error) {
	events, err := f.fetchEvents(ctx, since, until)
	if err != nil {
		return nil, err
	}
	lines := make([]string, 0, len(events))
	for _, ev := range events {
		lines = append(lines, ev.msg)
	}
	return lines, nil
}

// FetchInvocations fetches and parses the METRIC lines in the window.
// If a line carries no parseable timestamp of its own, the CloudWatch
// event timestamp stands in.
func (f *LogFetcher) FetchInvocations(ctx context.Context, since, until time.Time) ([]Invocation, error) {
	events, err := f.fetchEvents(ctx, since, until)
	if err != nil {
		return nil, err
	}
	invs := make([]Invocation, 0, len(events))
	for _, ev := range events {
		inv, ok := ParseMetricLine(ev.msg)
		if !ok {
			continue
		}
		if inv.Timestamp.IsZero() {
			inv.Timestamp = time.Unix(0, ev.ts*int64(time.Millisecond))
		}
		invs = append(invs, *inv)
	}
	return invs, nil
}
