package cli

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// --- Response types (дублируются из api/dto.go, CLI не импортирует internal/api) ---

// JobResponse — job из API.
type JobResponse struct {
	Job    string         `json:"job"`
	Status string         `json:"status,omitempty"`
	Nodes  int            `json:"nodes"`
	Counts map[string]int `json:"counts"`
}

// NodeSummary — строка сводки по узлу из API.
type NodeSummary struct {
	Node struct {
		Step  string `json:"step"`
		Index string `json:"index"`
	} `json:"node"`
	Tool     string             `json:"tool,omitempty"`
	Status   string             `json:"status"`
	Metrics  map[string]float64 `json:"metrics,omitempty"`
	Selected *struct {
		Step  string `json:"step"`
		Index string `json:"index"`
	} `json:"selected,omitempty"`
}

// JobDetailResponse — job со сводкой из API.
type JobDetailResponse struct {
	Job    string        `json:"job"`
	Status string        `json:"status,omitempty"`
	Nodes  []NodeSummary `json:"nodes"`
}

// ResultResponse — путь к артефакту из API.
type ResultResponse struct {
	Job  string `json:"job"`
	Node string `json:"node"`
	Kind string `json:"kind"`
	Path string `json:"path"`
}

// RunResponse — run из API.
type RunResponse struct {
	ID         string   `json:"id"`
	JobID      string   `json:"job_id"`
	Flow       string   `json:"flow"`
	Status     string   `json:"status"`
	Steplist   []string `json:"steplist,omitempty"`
	StartedAt  string   `json:"started_at,omitempty"`
	FinishedAt string   `json:"finished_at,omitempty"`
	Error      string   `json:"error,omitempty"`
	CreatedAt  string   `json:"created_at"`
}

// NodeRunResponse — узел run из API.
type NodeRunResponse struct {
	Node       string `json:"node"`
	Tool       string `json:"tool"`
	Status     string `json:"status"`
	Threads    int    `json:"threads,omitempty"`
	Selected   string `json:"selected,omitempty"`
	StartedAt  string `json:"started_at,omitempty"`
	FinishedAt string `json:"finished_at,omitempty"`
	Error      string `json:"error,omitempty"`
}

// ScheduleResponse — schedule из API.
type ScheduleResponse struct {
	Name        string   `json:"name"`
	FlowFile    string   `json:"flow_file"`
	Manifest    string   `json:"manifest"`
	CronExpr    string   `json:"cron_expr,omitempty"`
	IntervalSec int      `json:"interval_sec,omitempty"`
	Timezone    string   `json:"timezone,omitempty"`
	Steplist    []string `json:"steplist,omitempty"`
	Enabled     bool     `json:"enabled"`
	NextDueAt   string   `json:"next_due_at,omitempty"`
	LastRunAt   string   `json:"last_run_at,omitempty"`
	LastJobID   string   `json:"last_job_id,omitempty"`
}

// ListRunsOpts — параметры фильтрации runs.
type ListRunsOpts struct {
	Flow   string
	Job    string
	Status string
	Limit  int
}

// --- API response wrappers ---

type dataResponse struct {
	Data json.RawMessage `json:"data"`
}

type listResponse struct {
	Data  json.RawMessage `json:"data"`
	Total int             `json:"total"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// --- Client ---

// Client — HTTP-клиент для API сервера pdflow.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт клиент для API.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// --- Jobs ---

// ListJobs возвращает jobs из manifest сервера.
func (c *Client) ListJobs(schedule string) ([]JobResponse, error) {
	var jobs []JobResponse
	err := c.list("/api/v1/jobs", scheduleParams(schedule), &jobs)
	return jobs, err
}

// GetJob возвращает job со сводкой по узлам.
func (c *Client) GetJob(job, schedule string) (*JobDetailResponse, error) {
	var detail JobDetailResponse
	err := c.get("/api/v1/jobs/"+url.PathEscape(job), scheduleParams(schedule), &detail)
	return &detail, err
}

// GetResult возвращает путь к артефакту узла.
func (c *Client) GetResult(job, step, index, kind, schedule string) (*ResultResponse, error) {
	params := scheduleParams(schedule)
	params.Set("kind", kind)

	path := fmt.Sprintf("/api/v1/jobs/%s/nodes/%s/%s/result",
		url.PathEscape(job), url.PathEscape(step), url.PathEscape(index))

	var result ResultResponse
	err := c.get(path, params, &result)
	return &result, err
}

// --- Runs ---

// ListRuns возвращает список runs с фильтрацией.
func (c *Client) ListRuns(opts ListRunsOpts) ([]RunResponse, error) {
	params := url.Values{}
	if opts.Flow != "" {
		params.Set("flow", opts.Flow)
	}
	if opts.Job != "" {
		params.Set("job", opts.Job)
	}
	if opts.Status != "" {
		params.Set("status", opts.Status)
	}
	if opts.Limit > 0 {
		params.Set("limit", strconv.Itoa(opts.Limit))
	}

	var runs []RunResponse
	err := c.list("/api/v1/runs", params, &runs)
	return runs, err
}

// ListRunNodes возвращает узлы run.
func (c *Client) ListRunNodes(runID string) ([]NodeRunResponse, error) {
	var nodes []NodeRunResponse
	err := c.list("/api/v1/runs/"+url.PathEscape(runID)+"/nodes", nil, &nodes)
	return nodes, err
}

// --- Schedules ---

// ListSchedules возвращает расписания сервера.
func (c *Client) ListSchedules() ([]ScheduleResponse, error) {
	var schedules []ScheduleResponse
	err := c.list("/api/v1/schedules", nil, &schedules)
	return schedules, err
}

// GetSchedule возвращает расписание по имени.
func (c *Client) GetSchedule(name string) (*ScheduleResponse, error) {
	var s ScheduleResponse
	err := c.get("/api/v1/schedules/"+url.PathEscape(name), nil, &s)
	return &s, err
}

// --- HTTP helpers ---

func scheduleParams(schedule string) url.Values {
	params := url.Values{}
	if schedule != "" {
		params.Set("schedule", schedule)
	}
	return params
}

func (c *Client) get(path string, params url.Values, result any) error {
	resp, err := c.do(path, params)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	var dr dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return json.Unmarshal(dr.Data, result)
}

func (c *Client) list(path string, params url.Values, result any) error {
	resp, err := c.do(path, params)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	var lr listResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return json.Unmarshal(lr.Data, result)
}

func (c *Client) do(path string, params url.Values) (*http.Response, error) {
	if len(params) > 0 {
		path = path + "?" + params.Encode()
	}

	req, err := http.NewRequest(http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	return c.httpClient.Do(req)
}

func (c *Client) checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return fmt.Errorf("API error: HTTP %d", resp.StatusCode)
	}

	return fmt.Errorf("%s: %s", er.Error.Code, er.Error.Message)
}
