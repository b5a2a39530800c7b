package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Result is the outcome of one request, kept for the status histogram.
type Result struct {
	Status int
	Body   string
	Err    error
}

func main() {
	baseURL := flag.String("base", "http://localhost:8080", "server base url")
	user := flag.String("user", "admin", "admin username")
	pass := flag.String("pass", "rmkits2024", "admin password")
	nCreates := flag.Int("creates", 100, "concurrent product creates")
	nReplays := flag.Int("replays", 20, "concurrent submissions sharing one Idempotency-Key")
	nBurst := flag.Int("burst", 50, "checkout requests fired at once from one client")
	concurrency := flag.Int("c", 25, "max concurrency")
	flag.Parse()

	jar, _ := cookiejar.New(nil)
	client := &http.Client{Timeout: 10 * time.Second, Jar: jar}

	if err := login(client, *baseURL, *user, *pass); err != nil {
		panic(fmt.Sprintf("login failed: %v", err))
	}
	fmt.Println("login ok")

	// 1) Code uniqueness: many creates racing for the next A#### code
	fmt.Printf("start code test: creates=%d concurrency=%d\n", *nCreates, *concurrency)
	runID := uuid.New().String()[:8]
	results := runConcurrent(*nCreates, *concurrency, func(i int) Result {
		form := url.Values{
			"titulo": {fmt.Sprintf("loadtest %s #%d", runID, i)},
			"precio": {"100"},
			"stock":  {"1"},
			"activo": {"0"},
		}
		return postForm(client, *baseURL+"/admin/producto", form)
	})
	printSummary("create", results)
	if dup, err := duplicateCodes(client, *baseURL); err != nil {
		fmt.Println("code check err:", err)
	} else {
		fmt.Println("duplicate codes:", dup)
	}

	// 2) Idempotent checkout: one key, many submissions, exactly one order
	key := uuid.New().String()
	fmt.Printf("\nstart idempotency test: key=%s submissions=%d\n", key, *nReplays)
	order := map[string]any{
		"nombre":    "loadtest " + runID,
		"productos": `[{"codigo":"A0001","cantidad":1}]`,
		"total":     250000,
	}
	results = runConcurrent(*nReplays, *nReplays, func(int) Result {
		return postJSON(client, *baseURL+"/guardar-pedido", order, map[string]string{"Idempotency-Key": key})
	})
	printSummary("idempotency", results)

	// 3) Checkout rate limit: one client above the configured limit gets 429
	fmt.Printf("\nstart rate limit test: %d requests from one client\n", *nBurst)
	send := map[string]any{"total": 250000, "items": []any{}}
	results = runConcurrent(*nBurst, *nBurst, func(int) Result {
		return postJSON(client, *baseURL+"/enviar_pedido", send, nil)
	})
	printSummary("rate_limit", results)
}

func runConcurrent(total, concurrency int, fn func(i int) Result) []Result {
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	results := make([]Result, total)

	for i := 0; i < total; i++ {
		wg.Add(1)
		sem <- struct{}{}
		go func(idx int) {
			defer wg.Done()
			defer func() { <-sem }()
			results[idx] = fn(idx)
		}(i)
	}

	wg.Wait()
	return results
}

func login(client *http.Client, baseURL, user, pass string) error {
	r := postForm(client, baseURL+"/admin/login", url.Values{"username": {user}, "password": {pass}})
	if r.Err != nil {
		return r.Err
	}
	if r.Status != http.StatusOK {
		return fmt.Errorf("status=%d body=%s", r.Status, r.Body)
	}
	return nil
}

func postForm(client *http.Client, target string, form url.Values) Result {
	req, _ := http.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return do(client, req)
}

func postJSON(client *http.Client, target string, body any, headers map[string]string) Result {
	b, _ := json.Marshal(body)
	req, _ := http.NewRequest(http.MethodPost, target, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return do(client, req)
}

func do(client *http.Client, req *http.Request) Result {
	resp, err := client.Do(req)
	if err != nil {
		return Result{Err: err}
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return Result{Status: resp.StatusCode, Body: string(body)}
}

// duplicateCodes counts catalog codes that appear more than once.
func duplicateCodes(client *http.Client, baseURL string) (int, error) {
	resp, err := client.Get(baseURL + "/admin/api/productos")
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		return 0, fmt.Errorf("status=%d body=%s", resp.StatusCode, string(b))
	}

	var out struct {
		Code int `json:"code"`
		Data []struct {
			Codigo string `json:"codigo"`
		} `json:"data"`
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return 0, err
	}
	seen := map[string]int{}
	dup := 0
	for _, p := range out.Data {
		seen[p.Codigo]++
		if seen[p.Codigo] == 2 {
			dup++
		}
	}
	return dup, nil
}

// printSummary prints the status code distribution.
func printSummary(name string, results []Result) {
	count := map[int]int{}
	errCount := 0
	for _, r := range results {
		if r.Err != nil {
			errCount++
			continue
		}
		count[r.Status]++
	}
	fmt.Printf("[%s] http status summary:\n", name)
	for _, code := range []int{200, 400, 401, 404, 409, 413, 429, 500} {
		if count[code] > 0 {
			fmt.Printf("  %d -> %d\n", code, count[code])
		}
	}
	if errCount > 0 {
		fmt.Printf("  errors -> %d\n", errCount)
	}
}
