package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/braket"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/qdispatch/api/internal/config"
)

// BraketClient submits quantum tasks to AWS Braket. Task results land in the
// configured output bucket as results.json and are fetched through S3.
type BraketClient struct {
	braketClient *braket.Client
	s3Client     *s3.Client
	outputBucket string
	outputPrefix string
}

// braketAction is the OpenQASM program envelope Braket expects in the task
// action document.
type braketAction struct {
	BraketSchemaHeader braketSchemaHeader `json:"braketSchemaHeader"`
	Source             string             `json:"source"`
}

type braketSchemaHeader struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// BraketTaskResult is the results.json document a finished task writes to S3.
type BraketTaskResult struct {
	MeasurementCounts        map[string]float64 `json:"measurementCounts,omitempty"`
	MeasurementProbabilities map[string]float64 `json:"measurementProbabilities,omitempty"`
	MeasuredQubits           []int              `json:"measuredQubits,omitempty"`
}

// NewBraketClient creates a new Braket client
func NewBraketClient(cfg *config.AWSConfig) (*BraketClient, error) {
	if cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" || cfg.OutputBucket == "" {
		return nil, fmt.Errorf("AWS Braket configuration incomplete")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
		awsconfig.WithRegion(cfg.Region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &BraketClient{
		braketClient: braket.NewFromConfig(awsCfg),
		s3Client:     s3.NewFromConfig(awsCfg),
		outputBucket: cfg.OutputBucket,
		outputPrefix: cfg.OutputPrefix,
	}, nil
}

// IsConfigured returns true if the client has valid configuration
func (c *BraketClient) IsConfigured() bool {
	return c.braketClient != nil && c.outputBucket != ""
}

// CreateTask submits an OpenQASM program as a quantum task and returns the
// task ARN.
func (c *BraketClient) CreateTask(ctx context.Context, deviceArn, source string, shots int) (string, error) {
	action, err := json.Marshal(braketAction{
		BraketSchemaHeader: braketSchemaHeader{
			Name:    "braket.ir.openqasm.program",
			Version: "1",
		},
		Source: source,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal task action: %w", err)
	}

	log.Printf("[Braket] → CreateQuantumTask device=%s shots=%d", deviceArn, shots)

	out, err := c.braketClient.CreateQuantumTask(ctx, &braket.CreateQuantumTaskInput{
		Action:            aws.String(string(action)),
		ClientToken:       aws.String(uuid.New().String()),
		DeviceArn:         aws.String(deviceArn),
		OutputS3Bucket:    aws.String(c.outputBucket),
		OutputS3KeyPrefix: aws.String(c.outputPrefix),
		Shots:             aws.Int64(int64(shots)),
	})
	if err != nil {
		return "", fmt.Errorf("failed to create quantum task: %w", err)
	}
	if out.QuantumTaskArn == nil || *out.QuantumTaskArn == "" {
		return "", fmt.Errorf("Braket returned no task ARN")
	}
	return *out.QuantumTaskArn, nil
}

// TaskStatus retrieves Braket's own status label for a task, verbatim.
func (c *BraketClient) TaskStatus(ctx context.Context, taskArn string) (string, error) {
	out, err := c.braketClient.GetQuantumTask(ctx, &braket.GetQuantumTaskInput{
		QuantumTaskArn: aws.String(taskArn),
	})
	if err != nil {
		return "", fmt.Errorf("failed to get quantum task: %w", err)
	}
	return string(out.Status), nil
}

// TaskResult downloads and parses results.json for a completed task. The
// task's own output directory is used so results are found even when the
// prefix was rewritten at submission time.
func (c *BraketClient) TaskResult(ctx context.Context, taskArn string) (*BraketTaskResult, error) {
	task, err := c.braketClient.GetQuantumTask(ctx, &braket.GetQuantumTaskInput{
		QuantumTaskArn: aws.String(taskArn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get quantum task: %w", err)
	}

	bucket := c.outputBucket
	if task.OutputS3Bucket != nil && *task.OutputS3Bucket != "" {
		bucket = *task.OutputS3Bucket
	}
	dir := c.outputPrefix
	if task.OutputS3Directory != nil && *task.OutputS3Directory != "" {
		dir = *task.OutputS3Directory
	}
	key := fmt.Sprintf("%s/results.json", dir)

	log.Printf("[Braket] → GetObject s3://%s/%s", bucket, key)

	obj, err := c.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch task results from S3: %w", err)
	}
	defer obj.Body.Close()

	body, err := io.ReadAll(obj.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read task results: %w", err)
	}

	var result BraketTaskResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal task results: %w", err)
	}
	return &result, nil
}
