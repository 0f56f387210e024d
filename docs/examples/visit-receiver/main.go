// Visit report receiver example
//
// A minimal endpoint for the catalog's periodic visit reports.
//
// Usage:
//   export VISIT_TRACKING_SECRET="your_shared_secret"
//   go run main.go
//
// Then point VISIT_TRACKING_API at http://your-server:9000/visits

package main

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"os"
	"sort"
	"strings"
)

const maxReportBytes = 4 << 20

// Report is the body posted by the catalog's visit reporter.
type Report struct {
	Timestamp                string             `json:"timestamp"`
	ReportingIntervalSeconds int                `json:"reporting_interval_seconds"`
	Data                     map[string]*Bucket `json:"data"`
}

// Bucket aggregates the visits of one time slot.
type Bucket struct {
	Count      int            `json:"count"`
	Paths      map[string]int `json:"paths"`
	UserAgents map[string]int `json:"user_agents"`
	Countries  map[string]int `json:"countries"`
}

func main() {
	secret := os.Getenv("VISIT_TRACKING_SECRET")
	if secret == "" {
		log.Println("VISIT_TRACKING_SECRET not set, accepting unsigned reports")
	}

	http.HandleFunc("/visits", visitsHandler(secret))
	http.HandleFunc("/health", healthHandler)

	log.Println("Starting visit receiver on :9000")
	log.Println("Endpoint: http://localhost:9000/visits")
	log.Fatal(http.ListenAndServe(":9000", nil))
}

func visitsHandler(secret string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, maxReportBytes))
		if err != nil {
			log.Printf("Error reading body: %v", err)
			http.Error(w, "Bad request", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		if secret != "" && !verifySignature(r.Header.Get("X-Visit-Signature"), body, secret) {
			log.Println("Invalid or missing X-Visit-Signature")
			http.Error(w, "Invalid signature", http.StatusUnauthorized)
			return
		}

		var report Report
		if err := json.Unmarshal(body, &report); err != nil {
			log.Printf("Error parsing JSON: %v", err)
			http.Error(w, "Invalid JSON", http.StatusBadRequest)
			return
		}

		slots := make([]string, 0, len(report.Data))
		total := 0
		for slot, b := range report.Data {
			slots = append(slots, slot)
			total += b.Count
		}
		sort.Strings(slots)

		log.Printf("Received report at %s: %d visits in %d slots", report.Timestamp, total, len(slots))
		for _, slot := range slots {
			log.Printf("  %s  %d visits, %d paths", slot, report.Data[slot].Count, len(report.Data[slot].Paths))
		}

		// Anything other than 200 makes the catalog keep the batch and resend it.
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "received"})
	}
}

// verifySignature checks the header format "sha256=<hex HMAC of the body>".
func verifySignature(header string, body []byte, secret string) bool {
	signature, ok := strings.CutPrefix(header, "sha256=")
	if !ok || signature == "" {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(signature), []byte(expected))
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
