package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/IBM/sarama"
)

// resultMessage mirrors the match result payload the consumer expects
type resultMessage struct {
	EventID  string `json:"event_id"`
	WinnerID string `json:"winner_id,omitempty"`
	LoserID  string `json:"loser_id,omitempty"`
	Draw     bool   `json:"draw,omitempty"`
}

func main() {
	// Command line flags
	brokers := flag.String("brokers", "localhost:9094", "Kafka brokers (comma-separated)")
	topic := flag.String("topic", "match-results", "Kafka topic")
	eventID := flag.String("event", "", "Event ID the result belongs to")
	winnerID := flag.String("winner", "", "Winning user ID")
	loserID := flag.String("loser", "", "Losing user ID")
	draw := flag.Bool("draw", false, "Record a draw instead of a win/loss")
	fromFile := flag.String("file", "", "Read a JSON array of results from a file instead of flags")
	rate := flag.Int("rate", 50, "Results per second when publishing from a file")
	flag.Parse()

	brokerList := strings.Split(*brokers, ",")

	results, err := collectResults(*eventID, *winnerID, *loserID, *draw, *fromFile)
	if err != nil {
		log.Fatalf("Invalid input: %v", err)
	}

	fmt.Printf("Publishing %d result(s) to %s (topic %s)\n", len(results), *brokers, *topic)

	// Configure Sarama producer
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForLocal
	config.Producer.Compression = sarama.CompressionSnappy
	config.Producer.Flush.Frequency = 100 * time.Millisecond
	config.Producer.Flush.Messages = 100
	config.Producer.Return.Successes = true
	config.Producer.Return.Errors = true

	// Create producer
	producer, err := sarama.NewAsyncProducer(brokerList, config)
	if err != nil {
		log.Fatalf("Failed to create producer: %v", err)
	}

	// Handle producer errors and successes
	var successCount, errorCount int64
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for range producer.Successes() {
			atomic.AddInt64(&successCount, 1)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for err := range producer.Errors() {
			atomic.AddInt64(&errorCount, 1)
			log.Printf("Producer error: %v", err)
		}
	}()

	// Handle shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	if *rate <= 0 {
		*rate = 1
	}
	interval := time.Second / time.Duration(*rate)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	sent := 0
publish:
	for _, result := range results {
		data, err := json.Marshal(result)
		if err != nil {
			log.Printf("Failed to marshal result: %v", err)
			continue
		}

		msg := &sarama.ProducerMessage{
			Topic: *topic,
			Key:   sarama.StringEncoder(result.EventID),
			Value: sarama.ByteEncoder(data),
		}

		select {
		case producer.Input() <- msg:
			sent++
		case <-sigChan:
			fmt.Println("\nInterrupted, flushing...")
			break publish
		}

		if len(results) > 1 {
			<-ticker.C
		}
	}

	producer.AsyncClose()
	wg.Wait()
	fmt.Printf("Completed. Queued: %d, Sent: %d, Errors: %d\n",
		sent,
		atomic.LoadInt64(&successCount),
		atomic.LoadInt64(&errorCount),
	)
}

// collectResults builds the list of results to publish, either a single one
// from flags or a batch decoded from a JSON file.
func collectResults(eventID, winnerID, loserID string, draw bool, fromFile string) ([]resultMessage, error) {
	if fromFile != "" {
		data, err := os.ReadFile(fromFile)
		if err != nil {
			return nil, fmt.Errorf("reading results file: %w", err)
		}
		var results []resultMessage
		if err := json.Unmarshal(data, &results); err != nil {
			return nil, fmt.Errorf("parsing results file: %w", err)
		}
		for i, r := range results {
			if err := validateResult(r); err != nil {
				return nil, fmt.Errorf("result %d: %w", i, err)
			}
		}
		return results, nil
	}

	result := resultMessage{
		EventID:  eventID,
		WinnerID: winnerID,
		LoserID:  loserID,
		Draw:     draw,
	}
	if err := validateResult(result); err != nil {
		return nil, err
	}
	return []resultMessage{result}, nil
}

func validateResult(r resultMessage) error {
	if r.EventID == "" {
		return fmt.Errorf("missing event id")
	}
	if !r.Draw && (r.WinnerID == "" || r.LoserID == "") {
		return fmt.Errorf("need both winner and loser unless the result is a draw")
	}
	return nil
}
