package generator

import "trivia-bot-service/internal/domain"

// FallbackModelName labels payloads that did not come from a live backend.
const FallbackModelName = "fallback"

// curatedQuestions keeps the quiz alive during API outages. Keyed by topic;
// topics without an entry fall through to the generic question.
var curatedQuestions = map[string]domain.QuestionPayload{
	"Operating Systems": {
		Topic:    "Operating Systems",
		Question: "Which of the following scheduling algorithms is preemptive by design?",
		Options: map[string]string{
			"A": "First-Come, First-Served (FCFS)",
			"B": "Shortest Job First (SJF)",
			"C": "Round Robin",
			"D": "Non-preemptive Priority",
		},
		Answer:      "C",
		Explanation: "Round Robin uses time slices, forcing a context switch once the quantum expires.",
		Difficulty:  "Medium",
		ModelName:   FallbackModelName,
	},
	"Algorithms & Data Structures": {
		Topic:    "Algorithms & Data Structures",
		Question: "What is the time complexity of inserting an element into a max-heap of size n?",
		Options: map[string]string{
			"A": "O(1)",
			"B": "O(log n)",
			"C": "O(n)",
			"D": "O(n log n)",
		},
		Answer:      "B",
		Explanation: "Heap insertion bubbles the value up at most log n levels.",
		Difficulty:  "Medium",
		ModelName:   FallbackModelName,
	},
	"Databases & SQL": {
		Topic:    "Databases & SQL",
		Question: "In SQL, which isolation level prevents dirty reads but allows phantom reads?",
		Options: map[string]string{
			"A": "Read Uncommitted",
			"B": "Read Committed",
			"C": "Repeatable Read",
			"D": "Serializable",
		},
		Answer:      "B",
		Explanation: "Read Committed prevents dirty reads but still allows phantom reads and non-repeatable reads.",
		Difficulty:  "Medium",
		ModelName:   FallbackModelName,
	},
	"Computer Networking": {
		Topic:    "Computer Networking",
		Question: "Which layer of the OSI model is responsible for end-to-end communication and error recovery?",
		Options: map[string]string{
			"A": "Network Layer",
			"B": "Transport Layer",
			"C": "Session Layer",
			"D": "Data Link Layer",
		},
		Answer:      "B",
		Explanation: "The Transport Layer (Layer 4) provides end-to-end communication services including error recovery and flow control.",
		Difficulty:  "Medium",
		ModelName:   FallbackModelName,
	},
	"Machine Learning": {
		Topic:    "Machine Learning",
		Question: "Which technique helps prevent overfitting by randomly dropping neurons during training?",
		Options: map[string]string{
			"A": "Batch Normalization",
			"B": "Dropout",
			"C": "Early Stopping",
			"D": "Data Augmentation",
		},
		Answer:      "B",
		Explanation: "Dropout randomly disables neurons during training, forcing the network to learn redundant representations and preventing overfitting.",
		Difficulty:  "Medium",
		ModelName:   FallbackModelName,
	},
}

// Fallback returns the curated question for topic, or the generic question if
// none is curated. It never fails.
func Fallback(topic string) domain.QuestionPayload {
	if payload, ok := curatedQuestions[topic]; ok {
		return payload
	}
	return domain.QuestionPayload{
		Topic:    topic,
		Question: "Which Big-O complexity class represents logarithmic time?",
		Options: map[string]string{
			"A": "O(1)",
			"B": "O(n)",
			"C": "O(log n)",
			"D": "O(n^2)",
		},
		Answer:      "C",
		Explanation: "Logarithmic time grows slowly, often observed in balanced divide-and-conquer algorithms.",
		Difficulty:  "Medium",
		ModelName:   FallbackModelName,
	}
}
