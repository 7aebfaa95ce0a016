package ai

import (
	"fmt"
	"strconv"
	"strings"
)

// EmptyGenerationAnswer is returned when the model produced no text.
const EmptyGenerationAnswer = "I apologize, but I couldn't generate a response to your question. Please try rephrasing your question or check if the system is properly configured."

// SourceChunk is a retrieved transcript excerpt fed into a prompt.
type SourceChunk struct {
	Company    string
	Date       string
	Quarter    string
	Content    string
	Similarity float64
}

// SentimentResult is the parsed output of a sentiment analysis prompt.
type SentimentResult struct {
	Sentiment  string  `json:"sentiment"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

// SentimentUnknown is the result reported when analysis failed outright.
func SentimentUnknown() SentimentResult {
	return SentimentResult{Sentiment: "unknown", Confidence: 0.0, Reasoning: "Analysis failed"}
}

const ragPromptTemplate = `You are a financial analyst AI assistant specialized in analyzing earnings call transcripts.
Your task is to provide accurate, insightful answers based on the provided financial transcript excerpts.

CONTEXT FROM FINANCIAL TRANSCRIPTS:
%s

QUESTION: %s

INSTRUCTIONS:
1. Base your answer primarily on the provided transcript excerpts
2. Provide specific, factual information with clear attribution to companies and time periods
3. If the question asks about trends, compare information across different time periods or companies
4. If the provided context doesn't fully answer the question, acknowledge the limitations
5. Use financial terminology appropriately and explain complex concepts when necessary
6. Structure your response clearly with key points highlighted
7. When referencing specific information, mention the company and time period

RESPONSE:`

// BuildRAGPrompt assembles the numbered-source prompt for answering a
// question from retrieved transcript excerpts.
func BuildRAGPrompt(question string, sources []SourceChunk) string {
	contextParts := make([]string, 0, len(sources))
	for i, source := range sources {
		company := source.Company
		if company == "" {
			company = "Unknown"
		}
		date := source.Date
		if date == "" {
			date = "Unknown date"
		}
		quarterInfo := ""
		if source.Quarter != "" {
			quarterInfo = fmt.Sprintf(" (%s)", source.Quarter)
		}
		contextParts = append(contextParts, fmt.Sprintf(
			"Source %d - %s%s - %s (Relevance: %.2f):\n%s\n",
			i+1, company, quarterInfo, date, source.Similarity, source.Content,
		))
	}

	return fmt.Sprintf(ragPromptTemplate, strings.Join(contextParts, "\n"), question)
}

// NoContextAnswer is the canned answer when retrieval found nothing.
func NoContextAnswer(question string) string {
	return fmt.Sprintf(
		"I couldn't find relevant information in the available financial transcripts "+
			"to answer your question: '%s'. This could be because:\n\n"+
			"1. The topic isn't covered in the available earnings call transcripts\n"+
			"2. The information might be in transcripts outside the covered time period (2016-2020)\n"+
			"3. The question might need to be rephrased to match the content better\n\n"+
			"Try refining your question or asking about topics commonly discussed in earnings calls "+
			"such as revenue, growth, market conditions, or business strategy.",
		question,
	)
}

const summaryPromptTemplate = `Analyze and summarize the following financial transcript excerpts related to %s:

%s

Provide a comprehensive summary that:
1. Identifies key themes and trends
2. Highlights company-specific insights
3. Notes any significant changes over time
4. Summarizes the overall sentiment

Summary:`

// BuildSummaryPrompt assembles the topic summary prompt.
func BuildSummaryPrompt(topic string, sources []SourceChunk) string {
	contextParts := make([]string, 0, len(sources))
	for _, source := range sources {
		company := source.Company
		if company == "" {
			company = "Unknown"
		}
		date := source.Date
		if date == "" {
			date = "Unknown"
		}
		contextParts = append(contextParts, fmt.Sprintf("%s (%s):\n%s\n", company, date, source.Content))
	}

	return fmt.Sprintf(summaryPromptTemplate, topic, strings.Join(contextParts, "\n"))
}

const keyPointsPromptTemplate = `Extract the %d most important key points from these financial transcript excerpts:

%s

Format as a numbered list of clear, concise points:

Key Points:`

// BuildKeyPointsPrompt assembles the key-point extraction prompt.
func BuildKeyPointsPrompt(sources []SourceChunk, maxPoints int) string {
	var combined strings.Builder
	for _, source := range sources {
		combined.WriteString(fmt.Sprintf("[%s - %s] %s\n\n", source.Company, source.Date, source.Content))
	}

	return fmt.Sprintf(keyPointsPromptTemplate, maxPoints, combined.String())
}

// ParseKeyPoints pulls the numbered or bulleted points out of a model
// response, capped at maxPoints.
func ParseKeyPoints(text string, maxPoints int) []string {
	var keyPoints []string
	for _, line := range strings.Split(strings.TrimSpace(text), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if !isDigit(line[0]) && !strings.HasPrefix(line, "-") && !strings.HasPrefix(line, "•") {
			continue
		}

		point := line
		if idx := strings.Index(line, "."); idx >= 0 {
			point = strings.TrimSpace(line[idx+1:])
		}
		point = strings.TrimSpace(strings.TrimLeft(point, "- •"))
		if point != "" {
			keyPoints = append(keyPoints, point)
		}
	}

	if len(keyPoints) > maxPoints {
		keyPoints = keyPoints[:maxPoints]
	}
	return keyPoints
}

const sentimentPromptTemplate = `Analyze the sentiment of this financial text excerpt. Consider the business context and financial implications.

Text: %s

Provide your analysis in this format:
Sentiment: [Positive/Negative/Neutral]
Confidence: [0.0-1.0]
Reasoning: [Brief explanation]

Analysis:`

// BuildSentimentPrompt assembles the sentiment analysis prompt.
func BuildSentimentPrompt(text string) string {
	return fmt.Sprintf(sentimentPromptTemplate, text)
}

// ParseSentiment reads the Sentiment/Confidence/Reasoning lines of a
// model response. Missing fields fall back to a neutral result.
func ParseSentiment(text string) SentimentResult {
	result := SentimentResult{Sentiment: "neutral", Confidence: 0.5, Reasoning: "Unable to determine"}

	for _, line := range strings.Split(strings.TrimSpace(text), "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "Sentiment:"):
			result.Sentiment = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(line, "Sentiment:")))
		case strings.HasPrefix(line, "Confidence:"):
			if value, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimPrefix(line, "Confidence:")), 64); err == nil {
				result.Confidence = value
			}
		case strings.HasPrefix(line, "Reasoning:"):
			result.Reasoning = strings.TrimSpace(strings.TrimPrefix(line, "Reasoning:"))
		}
	}

	return result
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}
