package marketplace

import "github.com/recapturedocs/recapturedocs/internal/contract"

var createTaskSchema = contract.MustCompile("create_task_response.json", map[string]any{
	"type":     "object",
	"required": []any{"taskId"},
	"properties": map[string]any{
		"taskId": map[string]any{"type": "string", "minLength": 1},
	},
})

var assignmentsSchema = contract.MustCompile("list_assignments_response.json", map[string]any{
	"type":     "object",
	"required": []any{"assignments"},
	"properties": map[string]any{
		"assignments": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type":     "object",
				"required": []any{"assignmentId", "status"},
				"properties": map[string]any{
					"assignmentId": map[string]any{"type": "string", "minLength": 1},
					"workerId":     map[string]any{"type": "string"},
					"status": map[string]any{
						"enum": []any{"Submitted", "Approved", "Rejected", "Accepted", "Returned", "Abandoned"},
					},
					"answers": map[string]any{
						"type": "array",
						"items": map[string]any{
							"type": "array",
							"items": map[string]any{
								"type":     "object",
								"required": []any{"questionId"},
								"properties": map[string]any{
									"questionId": map[string]any{"type": "string"},
									"freeText":   map[string]any{"type": "string"},
								},
							},
						},
					},
				},
			},
		},
	},
})
