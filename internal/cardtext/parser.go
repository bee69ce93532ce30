package cardtext

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/cmhannon/flashfam/internal/domain"
)

const (
	frontPrefix = "F:"
	backPrefix  = "B:"
)

type state int

const (
	seeking state = iota
	readingFront
	readingBack
)

// ParseFile reads a markdown deck file and extracts all cards.
func ParseFile(path string) ([]domain.Card, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return Parse(file)
}

// Parse reads card blocks from r. A card is an F: block followed by an
// optional B: block; "---" separates cards, and a new F: line also
// starts a new card. Blocks may span multiple lines.
func Parse(r io.Reader) ([]domain.Card, error) {
	scanner := bufio.NewScanner(r)
	var cards []domain.Card
	var current domain.Card
	var block []string
	currentState := seeking

	flushBlock := func() {
		if len(block) == 0 {
			return
		}
		content := strings.Join(block, "\n")
		switch currentState {
		case readingFront:
			current.Front = content
		case readingBack:
			current.Back = content
		}
		block = nil
	}

	finishCard := func() {
		flushBlock()
		if current.Front != "" {
			cards = append(cards, current)
		}
		current = domain.Card{}
		currentState = seeking
	}

	for scanner.Scan() {
		line := scanner.Text()

		isF := strings.HasPrefix(line, frontPrefix)
		isB := strings.HasPrefix(line, backPrefix)

		if line == "---" {
			finishCard()
			continue
		}

		if isF || isB {
			flushBlock()

			prefix := backPrefix
			if isF {
				if currentState != seeking { // A new front always starts a new card
					finishCard()
				}
				prefix = frontPrefix
				currentState = readingFront
			} else {
				currentState = readingBack
			}

			content := strings.TrimPrefix(line, prefix)
			if strings.HasPrefix(content, " ") {
				content = content[1:]
			}
			block = append(block, content)
		} else if currentState != seeking {
			block = append(block, line)
		}
	}

	finishCard() // Finish the very last card in the file

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return cards, nil
}

// SplitPhrases breaks pasted text into writing phrases: one per line
// or semicolon-separated segment, trimmed, empties dropped, duplicates
// removed while preserving first-seen order.
func SplitPhrases(text string) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return r == '\n' || r == ';' || r == '；'
	})

	seen := make(map[string]bool, len(fields))
	var phrases []string
	for _, f := range fields {
		phrase := strings.TrimSpace(f)
		if phrase == "" || seen[phrase] {
			continue
		}
		seen[phrase] = true
		phrases = append(phrases, phrase)
	}
	return phrases
}
