package executor_test

import (
	"context"
	"encoding/json"

	"github.com/go-logr/logr"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/kestrelsec/workflow-runner/pkg/workflow/actions"
	"github.com/kestrelsec/workflow-runner/pkg/workflow/apperr"
	"github.com/kestrelsec/workflow-runner/pkg/workflow/executor"
	"github.com/kestrelsec/workflow-runner/pkg/workflow/model"
)

type fakeLoader struct {
	workflow *model.Workflow
	err      error
}

func (f *fakeLoader) LoadWorkflow(context.Context, string) (*model.Workflow, error) {
	return f.workflow, f.err
}

// fakeRunStore records every snapshot write so specs can assert on
// per-node persistence and the completion mark.
type fakeRunStore struct {
	initCalled  bool
	updates     []map[string]interface{}
	completed   bool
	completeErr error
	updateErr   error
}

func (f *fakeRunStore) InitRunState(context.Context, string) (string, error) {
	f.initCalled = true
	return "run-1", nil
}

func (f *fakeRunStore) UpdateRunState(_ context.Context, _ string, state map[string]interface{}) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	// Deep-copy: the executor hands us its live map.
	encoded, err := json.Marshal(state)
	if err != nil {
		return err
	}
	var snapshot map[string]interface{}
	if err := json.Unmarshal(encoded, &snapshot); err != nil {
		return err
	}
	f.updates = append(f.updates, snapshot)
	return nil
}

func (f *fakeRunStore) MarkRunCompleted(context.Context, string) error {
	if f.completeErr != nil {
		return f.completeErr
	}
	f.completed = true
	return nil
}

// capturingClient implements httpadapter.Client, recording request URLs
// and answering with a canned body.
type capturingClient struct {
	urls     []string
	response json.RawMessage
	err      error
}

func (c *capturingClient) answer(url string) (json.RawMessage, error) {
	c.urls = append(c.urls, url)
	if c.err != nil {
		return nil, c.err
	}
	if c.response == nil {
		return json.RawMessage(`{}`), nil
	}
	return c.response, nil
}

func (c *capturingClient) Get(_ context.Context, url string, _ map[string]string, _ int, _ string) (json.RawMessage, error) {
	return c.answer(url)
}

func (c *capturingClient) Post(_ context.Context, url string, _ map[string]string, _ interface{}, _ int, _ string) (json.RawMessage, error) {
	return c.answer(url)
}

func (c *capturingClient) Put(_ context.Context, url string, _ map[string]string, _ interface{}, _ int, _ string) (json.RawMessage, error) {
	return c.answer(url)
}

func (c *capturingClient) Delete(_ context.Context, url string, _ map[string]string, _ int, _ string) (json.RawMessage, error) {
	return c.answer(url)
}

func (c *capturingClient) PostForm(_ context.Context, url string, _ map[string]string, _ string, _ int, _ string) (json.RawMessage, error) {
	return c.answer(url)
}

func (c *capturingClient) GetWithOAuthRefresh(_ context.Context, _, url, _ string, _ map[string]string, _ int, _ string) (json.RawMessage, error) {
	return c.answer(url)
}

func (c *capturingClient) PostWithOAuthRefresh(_ context.Context, _, url, _ string, _ map[string]string, _ interface{}, _ int, _ string) (json.RawMessage, error) {
	return c.answer(url)
}

func action(id, handle string, actionType model.ActionType, definition string) *model.Action {
	return &model.Action{
		ActionID:         id,
		ActionName:       handle,
		ReferenceHandle:  handle,
		ActionType:       actionType,
		ActionDefinition: json.RawMessage(definition),
	}
}

var _ = Describe("Engine.RunWorkflow", func() {
	var (
		runs   *fakeRunStore
		client *capturingClient
	)

	newEngine := func(workflow *model.Workflow) *executor.Engine {
		return executor.NewEngine(
			&fakeLoader{workflow: workflow},
			runs,
			nil,
			client,
			nil,
			actions.MailConfig{},
			logr.Discard(),
		)
	}

	BeforeEach(func() {
		runs = &fakeRunStore{}
		client = &capturingClient{}
	})

	Context("with a straight-line manual-start workflow", func() {
		It("stores each node's output and marks the run complete", func() {
			workflow := &model.Workflow{
				WorkflowID: "wf-1",
				IsLive:     true,
				Actions: map[model.ReferenceHandle]*model.Action{
					"A": action("a-1", "A", model.ActionTypeManualStart, `{"input":{"x":1}}`),
					"B": action("b-1", "B", model.ActionTypeIfCondition, `{"conditions":[{"lhs":"<<A.x>>","rhs":1,"operator":"EQUALS"}]}`),
				},
				AdjList: map[model.ReferenceHandle][]model.ReferenceHandle{"A": {"B"}},
			}

			err := newEngine(workflow).RunWorkflow(context.Background(), "wf-1", "A", nil)
			Expect(err).ToNot(HaveOccurred())

			Expect(runs.updates).To(HaveLen(2))
			Expect(runs.updates[0]).To(HaveKeyWithValue("A", map[string]interface{}{"x": float64(1)}))
			Expect(runs.updates[1]).To(HaveKeyWithValue("B", map[string]interface{}{"condition_result": true}))
			Expect(runs.completed).To(BeTrue())
		})
	})

	Context("with a webhook trigger carrying a payload", func() {
		It("plants the payload before traversal and resolves references against it", func() {
			workflow := &model.Workflow{
				WorkflowID: "wf-2",
				IsLive:     true,
				Actions: map[model.ReferenceHandle]*model.Action{
					"W": action("w-1", "W", model.ActionTypeWebhook, `{}`),
					"H": action("h-1", "H", model.ActionTypeHTTPRequest, `{"url":"https://api/<<W.body.id>>","method":"POST"}`),
				},
				AdjList: map[model.ReferenceHandle][]model.ReferenceHandle{"W": {"H"}},
			}

			payload := map[string]interface{}{"body": map[string]interface{}{"id": "42"}}
			err := newEngine(workflow).RunWorkflow(context.Background(), "wf-2", "W", payload)
			Expect(err).ToNot(HaveOccurred())

			Expect(runs.updates[0]).To(HaveKeyWithValue("W", payload))
			Expect(client.urls).To(ConsistOf("https://api/42"))
			Expect(runs.completed).To(BeTrue())
		})
	})

	Context("with an offline workflow", func() {
		It("returns success without writing any state row", func() {
			workflow := &model.Workflow{
				WorkflowID: "wf-3",
				IsLive:     false,
				Actions: map[model.ReferenceHandle]*model.Action{
					"A": action("a-1", "A", model.ActionTypeManualStart, `{}`),
				},
			}

			err := newEngine(workflow).RunWorkflow(context.Background(), "wf-3", "A", nil)
			Expect(err).ToNot(HaveOccurred())
			Expect(runs.initCalled).To(BeFalse())
			Expect(runs.updates).To(BeEmpty())
			Expect(runs.completed).To(BeFalse())
		})
	})

	Context("when a node fails mid-run", func() {
		It("aborts without the completion mark, keeping partial state", func() {
			client.err = apperr.New(apperr.UpstreamHTTPError, "upstream exploded")
			workflow := &model.Workflow{
				WorkflowID: "wf-4",
				IsLive:     true,
				Actions: map[model.ReferenceHandle]*model.Action{
					"A": action("a-1", "A", model.ActionTypeManualStart, `{"input":{"x":1}}`),
					"H": action("h-1", "H", model.ActionTypeHTTPRequest, `{"url":"https://api/x","method":"GET"}`),
				},
				AdjList: map[model.ReferenceHandle][]model.ReferenceHandle{"A": {"H"}},
			}

			err := newEngine(workflow).RunWorkflow(context.Background(), "wf-4", "A", nil)
			Expect(err).To(HaveOccurred())
			Expect(apperr.Is(err, apperr.UpstreamHTTPError)).To(BeTrue())

			Expect(runs.updates).To(HaveLen(1))
			Expect(runs.completed).To(BeFalse())
		})
	})

	Context("when the completion write hits a missing run row", func() {
		It("surfaces the state corruption", func() {
			runs.completeErr = apperr.New(apperr.StateCorruption, "no such run")
			workflow := &model.Workflow{
				WorkflowID: "wf-5",
				IsLive:     true,
				Actions: map[model.ReferenceHandle]*model.Action{
					"A": action("a-1", "A", model.ActionTypeManualStart, `{}`),
				},
			}

			err := newEngine(workflow).RunWorkflow(context.Background(), "wf-5", "A", nil)
			Expect(err).To(HaveOccurred())
			Expect(apperr.Is(err, apperr.StateCorruption)).To(BeTrue())
		})
	})

	Context("with an unknown start handle", func() {
		It("fails before opening a run", func() {
			workflow := &model.Workflow{
				WorkflowID: "wf-6",
				IsLive:     true,
				Actions:    map[model.ReferenceHandle]*model.Action{},
			}

			err := newEngine(workflow).RunWorkflow(context.Background(), "wf-6", "missing", nil)
			Expect(err).To(HaveOccurred())
			Expect(apperr.Is(err, apperr.NotFound)).To(BeTrue())
			Expect(runs.initCalled).To(BeFalse())
		})
	})

	Context("with a branching graph", func() {
		It("visits successors breadth-first", func() {
			workflow := &model.Workflow{
				WorkflowID: "wf-7",
				IsLive:     true,
				Actions: map[model.ReferenceHandle]*model.Action{
					"A": action("a-1", "A", model.ActionTypeManualStart, `{"input":{"x":1}}`),
					"B": action("b-1", "B", model.ActionTypeHTTPRequest, `{"url":"https://api/b","method":"GET"}`),
					"C": action("c-1", "C", model.ActionTypeHTTPRequest, `{"url":"https://api/c","method":"GET"}`),
					"D": action("d-1", "D", model.ActionTypeHTTPRequest, `{"url":"https://api/d","method":"GET"}`),
				},
				AdjList: map[model.ReferenceHandle][]model.ReferenceHandle{
					"A": {"B", "C"},
					"B": {"D"},
				},
			}

			err := newEngine(workflow).RunWorkflow(context.Background(), "wf-7", "A", nil)
			Expect(err).ToNot(HaveOccurred())
			Expect(client.urls).To(Equal([]string{"https://api/b", "https://api/c", "https://api/d"}))
		})
	})
})
