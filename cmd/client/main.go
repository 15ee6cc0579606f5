// Command client is a minimal CLI submitting a single job to a gridmr
// coordinator and polling it to completion. It stays deliberately thin:
// a real caller would more likely use the coordinator's HTTP API directly.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/alicklee/gridmr/internal/config"
	"github.com/alicklee/gridmr/internal/httpapi"
	"github.com/alicklee/gridmr/internal/model"
)

func main() {
	configPath := flag.String("config", "", "path to gridmr.yaml (optional; defaults are used when absent)")
	jobName := flag.String("job-name", "", "optional human-readable job name")
	flag.Parse()

	args := flag.Args()
	if len(args) < 3 {
		fmt.Fprintln(os.Stderr, "usage: client <coordinator_addr> <data_url> <code_url>")
		os.Exit(1)
	}
	coordinatorAddr, dataURL, codeURL := args[0], args[1], args[2]

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "client: failed to load config:", err)
		os.Exit(1)
	}

	httpClient := &http.Client{Timeout: 30 * time.Second}

	jobID, err := submit(httpClient, coordinatorAddr, httpapi.SubmitJobRequest{
		CodeURL: codeURL,
		DataURL: dataURL,
		JobName: *jobName,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "client: submit failed:", err)
		os.Exit(1)
	}
	fmt.Println("job submitted:", jobID)

	deadline := time.Now().Add(cfg.MonitorTimeout)
	for {
		status, err := poll(httpClient, coordinatorAddr, jobID)
		if err != nil {
			fmt.Fprintln(os.Stderr, "client: status poll failed:", err)
			os.Exit(1)
		}

		fmt.Printf("status=%s progress=%.1f%%\n", status.Status, status.Progress)

		switch status.Status {
		case model.JobCompleted:
			result, err := fetchResult(httpClient, coordinatorAddr, jobID)
			if err != nil {
				fmt.Fprintln(os.Stderr, "client: fetch result failed:", err)
				os.Exit(1)
			}
			fmt.Println("result:", result.ResultURL)
			return
		case model.JobFailed:
			fmt.Fprintln(os.Stderr, "client: job failed:", status.Error)
			os.Exit(1)
		}

		if time.Now().After(deadline) {
			fmt.Fprintln(os.Stderr, "client: timed out waiting for job completion")
			os.Exit(1)
		}
		time.Sleep(cfg.PollInterval)
	}
}

func submit(c *http.Client, coordinatorAddr string, req httpapi.SubmitJobRequest) (string, error) {
	body, _ := json.Marshal(req)
	resp, err := c.Post(coordinatorAddr+"/job/submit", "application/json", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		var errResp httpapi.ErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		return "", fmt.Errorf("coordinator responded %s: %s", resp.Status, errResp.Error)
	}
	var out httpapi.SubmitJobResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	return out.JobID, nil
}

func poll(c *http.Client, coordinatorAddr, jobID string) (httpapi.JobStatusResponse, error) {
	var out httpapi.JobStatusResponse
	resp, err := c.Get(coordinatorAddr + "/job/status/" + jobID)
	if err != nil {
		return out, err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return out, fmt.Errorf("coordinator responded %s", resp.Status)
	}
	err = json.NewDecoder(resp.Body).Decode(&out)
	return out, err
}

func fetchResult(c *http.Client, coordinatorAddr, jobID string) (httpapi.JobResultResponse, error) {
	var out httpapi.JobResultResponse
	resp, err := c.Get(coordinatorAddr + "/job/result/" + jobID)
	if err != nil {
		return out, err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return out, fmt.Errorf("coordinator responded %s", resp.Status)
	}
	err = json.NewDecoder(resp.Body).Decode(&out)
	return out, err
}
