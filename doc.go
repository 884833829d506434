// Package aidefense provides the Go SDK for the Cisco AI Defense runtime
// inspection API.
//
// AI Defense inspects the traffic of AI applications: prompts and responses
// exchanged with models, and raw HTTP transactions carrying them. Each
// inspection call submits content to the service and returns a structured
// verdict with a safety flag, the policy rules that matched, and their
// classifications.
//
// # Quick Start
//
// You need a runtime API key, issued per connection in the AI Defense console.
//
//	import "github.com/cisco-ai-defense/gosdk"
//
//	// Create a chat inspection client
//	client, err := aidefense.NewChatClient(aidefense.WithAPIKey("your-api-key"))
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Inspect a prompt before it reaches the model
//	result, err := client.InspectPrompt(context.Background(), userPrompt, aidefense.InspectOptions{})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	if !result.IsSafe {
//		fmt.Println("Blocked:", result.Rules)
//	}
//
// # Inspection Surfaces
//
// The SDK exposes two clients over one shared request pipeline:
//
//   - ChatClient inspects conversational content: InspectPrompt,
//     InspectResponse, InspectPromptResponse, and InspectConversation for
//     whole role-tagged message sequences.
//   - HTTPClient inspects HTTP transactions: InspectRequest and
//     InspectResponse for hand-described exchanges, InspectRequestFrom and
//     InspectResponseFrom for net/http values, and Inspect as the low-level
//     escape hatch accepting a fully specified HTTPInspectRequest.
//
// Bodies handed to HTTPClient may be strings, byte slices, or any
// JSON-serializable value; the SDK normalizes and base64-encodes them on the
// wire.
//
// # Rules and Metadata
//
// Every call takes InspectOptions. Config selects the rules to evaluate; when
// set, it fully replaces the service-side defaults for that call. Metadata
// attaches correlation context (user, application, transaction id) that the
// service records with the event but never uses for the verdict.
//
//	result, err := client.InspectPrompt(ctx, prompt, aidefense.InspectOptions{
//		Config: &aidefense.InspectionConfig{
//			EnabledRules: []aidefense.Rule{
//				{RuleName: aidefense.RuleNamePromptInjection},
//				{RuleName: aidefense.RuleNamePII, EntityTypes: []string{"EMAIL"}},
//			},
//		},
//		Metadata: &aidefense.Metadata{User: "jdoe", SrcApp: "support-bot"},
//	})
//
// # Tracing
//
// Every request carries exactly one trace identifier in the
// x-aidefense-request-id header: the RequestID from InspectOptions, or a
// generated UUID. The same identifier appears on any APIError the call
// produces, so a failed call can always be correlated with server-side logs.
//
// # Error Handling and Retries
//
// Transient failures (429, 5xx, connection resets) are retried with
// exponential backoff. Inspection uses POST, so retry is opt-in for it:
//
//	client, err := aidefense.NewChatClient(
//		aidefense.WithAPIKey("your-api-key"),
//		aidefense.WithRetryOnPost(),
//		aidefense.WithRetryConfig(aidefense.RetryConfig{
//			MaxRetries:      5,
//			InitialInterval: 500 * time.Millisecond,
//			MaxInterval:     30 * time.Second,
//			Multiplier:      2.0,
//			Statuses:        []int{429, 500, 502, 503, 504},
//			Methods:         []string{"GET", "POST"},
//		}),
//	)
//
// Failures come in three concrete kinds, all matching the SDKError interface:
// *ConfigError from the constructors, *ValidationError for bad input rejected
// before any network activity, and *APIError for anything that went wrong
// talking to the service.
//
//	result, err := client.InspectPrompt(ctx, prompt, aidefense.InspectOptions{})
//	if err != nil {
//		var apiErr *aidefense.APIError
//		if errors.As(err, &apiErr) {
//			log.Printf("service failure %d, request id %s", apiErr.StatusCode, apiErr.RequestID)
//		}
//	}
//
// # Timeouts
//
// Each call is bounded by the client-wide timeout (default 30 seconds),
// overridable per call via InspectOptions.Timeout or a deadline on the
// context. On expiry the in-flight attempt is abandoned and an APIError
// wrapping context.DeadlineExceeded is returned.
//
// # Model Scanning
//
// The modelscan subpackage drives the asynchronous model and repository
// scanning API against the management endpoint; see its package
// documentation.
package aidefense
