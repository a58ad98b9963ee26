package app

import (
	"fmt"
	"strings"
	"time"

	"quizbot-service/internal/domain"
)

const (
	msgHelp = "Send /start to begin a test. You will be asked for your name, " +
		"then each question arrives with answer buttons.\n" +
		"Each person can take the test once."
	msgNameTooShort       = "Please enter a valid name (at least 3 characters)."
	msgChooseVariant      = "Choose a test variant:"
	msgUnknownVariant     = "Unknown test variant, please choose one of the buttons."
	msgUseButtons         = "Please use the buttons to answer the question."
	msgSendStart          = "Send /start to begin the test."
	msgNotCurrentQuestion = "This is not the current question."
	msgInvalidSelection   = "Invalid selection."
	msgNothingToSelect    = "This choice is no longer available. Send /start."
	msgCorrect            = "Correct!"
	msgIncorrect          = "Incorrect"
	msgFailure            = "Something went wrong, please try again."
	msgFailureTapAgain    = "Something went wrong. Tap your answer again."
	msgFailureStart       = "Something went wrong. Send /start to continue."
)

const dateLayout = "02.01.2006"

func welcomeText(single *domain.Variant) string {
	var b strings.Builder
	b.WriteString("Welcome to the testing bot!\n\n")
	if single != nil {
		fmt.Fprintf(&b, "The test has %d questions. ", single.QuestionsPerTest)
	}
	b.WriteString("There is no time limit, but you cannot go back to a previous question.\n\n")
	b.WriteString("Please enter your full name to start the test.")
	return b.String()
}

func introText(name string, variant domain.Variant, total int) string {
	return fmt.Sprintf("Thank you, %s! Starting the test %q.\nThere are %d questions in total.", name, variant.Label(), total)
}

func questionText(position, total int, text string) string {
	return fmt.Sprintf("Question %d of %d:\n\n%s", position+1, total, text)
}

func resumeText(position, total int) string {
	return fmt.Sprintf("You are already taking the test. You are on question %d of %d.", position+1, total)
}

func alreadyCompletedText(s domain.Session) string {
	date := ""
	if s.CompletedAt != nil {
		date = formatDate(*s.CompletedAt)
	}
	return fmt.Sprintf("You have already completed the test.\nYour result: %d/%d\nCompleted on: %s",
		s.Score, s.TotalQuestions, date)
}

func completionText(final domain.FinalScore) string {
	return fmt.Sprintf("Test completed!\n\nYour result: %d/%d (%d%%)\n\n%s",
		final.Score, final.TotalQuestions, final.Percent(), rating(final.Percent()))
}

// rating buckets a percentage into the closing remark.
func rating(percent int) string {
	switch {
	case percent >= 80:
		return "Excellent result!"
	case percent >= 60:
		return "Good result!"
	default:
		return "We recommend reviewing the material."
	}
}

func formatDate(t time.Time) string {
	return t.Format(dateLayout)
}
