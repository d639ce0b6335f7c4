// Smoke client: walks the API end to end against a running server.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

const baseURL = "http://localhost:8080"

func main() {
	// Wait for server to start
	time.Sleep(2 * time.Second)

	checkEndpoint("GET", "/health", nil, 200)

	userID := "smoke-user"
	txID := createTransaction(userID, "buy", "AAPL", "10", "1000")
	fmt.Printf("Created Transaction ID: %s\n", txID)
	createTransaction(userID, "buy", "AAPL", "5", "600")

	checkEndpoint("GET", "/transactions/"+userID, nil, 200)
	checkEndpoint("GET", "/portfolio/"+userID, nil, 200)
	checkEndpoint("GET", "/holdings/"+userID, nil, 200)
	checkEndpoint("GET", "/quotes?symbols=AAPL,MSFT,INVALIDXYZ", nil, 200)

	checkEndpoint("DELETE", "/transactions/"+txID, nil, 200)
	checkEndpoint("GET", "/portfolio/"+userID, nil, 200)

	fmt.Println("ALL CHECKS PASSED")
}

func checkEndpoint(method, path string, body interface{}, expectedStatus int) {
	fmt.Printf("Testing %s %s...\n", method, path)
	var bodyReader io.Reader
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		bodyReader = bytes.NewBuffer(jsonBody)
	}

	req, _ := http.NewRequest(method, baseURL+path, bodyReader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != expectedStatus {
		log.Fatalf("Expected status %d, got %d. Body: %s", expectedStatus, resp.StatusCode, string(respBody))
	}
	fmt.Printf("Response: %s\n", string(respBody))
}

func createTransaction(userID, txType, ticker, qty, total string) string {
	fmt.Println("Creating transaction...")
	reqBody := map[string]interface{}{
		"user_id":      userID,
		"ticker":       ticker,
		"asset_name":   ticker,
		"asset_type":   "stock",
		"type":         txType,
		"quantity":     qty,
		"total_amount": total,
		"currency":     "EUR",
		"date":         time.Now().Format(time.RFC3339),
	}
	jsonBody, _ := json.Marshal(reqBody)
	resp, err := http.Post(baseURL+"/transactions", "application/json", bytes.NewBuffer(jsonBody))
	if err != nil {
		log.Fatalf("Create transaction failed: %v", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != 201 {
		log.Fatalf("Expected status 201, got %d. Body: %s", resp.StatusCode, string(respBody))
	}
	var out struct {
		TransactionID string `json:"transaction_id"`
	}
	if err := json.Unmarshal(respBody, &out); err != nil {
		log.Fatalf("Decode response failed: %v", err)
	}
	return out.TransactionID
}
