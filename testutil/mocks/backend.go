// MockBackend 的生成式后端测试模拟实现。
//
// 支持固定响应、脚本化响应队列、延迟与错误注入场景。
package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/BaSui01/genflow/llm"
)

// --- MockBackend 结构 ---

// Step 是脚本中的一次调用结果，Response 与 Err 二选一。
type Step struct {
	Response *llm.Response
	Err      error
}

// MockBackend 是 llm.Backend 的模拟实现
type MockBackend struct {
	mu sync.Mutex

	name string

	// 响应配置
	response *llm.Response
	err      error
	script   []Step
	fn       func(ctx context.Context, req *llm.Request) (*llm.Response, error)

	// 行为控制
	delay     time.Duration
	failAfter int
	failErr   error

	// 调用记录
	calls []MockBackendCall
}

// MockBackendCall 记录单次调用
type MockBackendCall struct {
	Request  *llm.Request
	Response *llm.Response
	Error    error
}

// --- 构造函数和 Builder 方法 ---

// NewMockBackend 创建新的 MockBackend
func NewMockBackend() *MockBackend {
	return &MockBackend{
		name:     "mock",
		response: &llm.Response{Text: "{}"},
	}
}

// WithName 设置后端名称
func (m *MockBackend) WithName(name string) *MockBackend {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.name = name
	return m
}

// WithText 设置固定文本响应
func (m *MockBackend) WithText(text string) *MockBackend {
	return m.WithResponse(&llm.Response{Text: text})
}

// WithResponse 设置固定响应
func (m *MockBackend) WithResponse(resp *llm.Response) *MockBackend {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.response = resp
	m.err = nil
	return m
}

// WithError 设置返回错误
func (m *MockBackend) WithError(err error) *MockBackend {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

// WithScript 设置按顺序消费的响应队列，耗尽后回落到固定响应
func (m *MockBackend) WithScript(steps ...Step) *MockBackend {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append(m.script, steps...)
	return m
}

// WithFunc 设置自定义生成函数，优先级最高
func (m *MockBackend) WithFunc(fn func(ctx context.Context, req *llm.Request) (*llm.Response, error)) *MockBackend {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fn = fn
	return m
}

// WithDelay 设置响应延迟，ctx 结束时提前返回
func (m *MockBackend) WithDelay(d time.Duration) *MockBackend {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
	return m
}

// WithFailAfter 设置在第 n 次调用后返回 err
func (m *MockBackend) WithFailAfter(n int, err error) *MockBackend {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failAfter = n
	m.failErr = err
	return m
}

// --- llm.Backend 实现 ---

// Name 返回后端名称
func (m *MockBackend) Name() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.name
}

// HealthCheck 总是健康
func (m *MockBackend) HealthCheck(ctx context.Context) (*llm.HealthStatus, error) {
	return &llm.HealthStatus{Healthy: true}, nil
}

// Generate 返回脚本、函数或固定响应
func (m *MockBackend) Generate(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	m.mu.Lock()
	delay := m.delay
	fn := m.fn
	n := len(m.calls) + 1
	var step *Step
	if len(m.script) > 0 {
		s := m.script[0]
		m.script = m.script[1:]
		step = &s
	}
	resp, err := m.response, m.err
	failing := m.failAfter > 0 && n > m.failAfter
	failErr := m.failErr
	m.mu.Unlock()

	if delay > 0 {
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return m.record(req, nil, ctx.Err())
		case <-timer.C:
		}
	}

	switch {
	case fn != nil:
		resp, err = fn(ctx, req)
	case step != nil:
		resp, err = step.Response, step.Err
	}
	if failing {
		resp, err = nil, failErr
	}
	if err != nil {
		return m.record(req, nil, err)
	}
	if resp != nil {
		cp := *resp
		resp = &cp
	}
	return m.record(req, resp, nil)
}

func (m *MockBackend) record(req *llm.Request, resp *llm.Response, err error) (*llm.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, MockBackendCall{Request: req, Response: resp, Error: err})
	return resp, err
}

// --- 调用记录 ---

// GetCalls 返回所有调用记录
func (m *MockBackend) GetCalls() []MockBackendCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MockBackendCall(nil), m.calls...)
}

// GetCallCount 返回调用次数
func (m *MockBackend) GetCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// GetLastCall 返回最后一次调用，无调用时返回 nil
func (m *MockBackend) GetLastCall() *MockBackendCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		return nil
	}
	c := m.calls[len(m.calls)-1]
	return &c
}

// Reset 清空调用记录与脚本
func (m *MockBackend) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
	m.script = nil
}

// --- 快捷构造 ---

// NewTextBackend 创建返回固定文本的后端
func NewTextBackend(text string) *MockBackend {
	return NewMockBackend().WithText(text)
}

// NewErrorBackend 创建总是失败的后端
func NewErrorBackend(err error) *MockBackend {
	return NewMockBackend().WithError(err)
}

// NewFlakyBackend 创建前 failures 次返回 err、之后返回 text 的后端
func NewFlakyBackend(failures int, err error, text string) *MockBackend {
	m := NewTextBackend(text)
	for i := 0; i < failures; i++ {
		m.WithScript(Step{Err: err})
	}
	return m
}
