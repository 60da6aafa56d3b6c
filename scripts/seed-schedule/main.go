// Command seed-schedule uploads the schedule and FAQ documents to S3 so the
// API can be started with SCHEDULE_SOURCE=s3://bucket/key.
//
// Usage:
//
//	go run ./scripts/seed-schedule s3://clinic-data/doctor_schedule.json [data/doctor_schedule.json]
package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/joho/godotenv"

	"github.com/wolfman30/clinic-scheduler/cmd/mainconfig"
	appconfig "github.com/wolfman30/clinic-scheduler/internal/config"
	"github.com/wolfman30/clinic-scheduler/internal/schedulesource"
	"github.com/wolfman30/clinic-scheduler/internal/scheduling"
)

func main() {
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		fmt.Println("Usage: go run ./scripts/seed-schedule <s3-uri> [schedule-file]")
		os.Exit(1)
	}
	target := os.Args[1]
	file := "data/doctor_schedule.json"
	if len(os.Args) > 2 {
		file = os.Args[2]
	}

	bucket, key, ok := schedulesource.ParseS3URI(target)
	if !ok {
		fmt.Printf("Error: %q is not an s3://bucket/key URI\n", target)
		os.Exit(1)
	}

	data, err := os.ReadFile(file)
	if err != nil {
		fmt.Printf("Error reading %s: %v\n", file, err)
		os.Exit(1)
	}
	// Refuse to publish a document the API would reject at startup.
	store, err := scheduling.LoadSchedule(bytes.NewReader(data))
	if err != nil {
		fmt.Printf("Error: %s is not a valid schedule: %v\n", file, err)
		os.Exit(1)
	}

	cfg := appconfig.Load()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		fmt.Printf("Error loading AWS config: %v\n", err)
		os.Exit(1)
	}
	client := s3.NewFromConfig(awsCfg, mainconfig.S3Options(cfg))

	if _, err := client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	}); err != nil {
		fmt.Printf("Error uploading to %s: %v\n", target, err)
		os.Exit(1)
	}

	fmt.Printf("Uploaded %s (%d doctors) to %s\n", file, len(store.Doctors()), target)
}
