package main

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"mailboxapi/pkg/domain"
	"mailboxapi/services/mailbox/internal/app"
)

const (
	demoEmail    = "sarah.johnson@techcorp.com"
	demoPassword = "SecurePass123!"
	demoName     = "Sarah Johnson"
)

type demoLabel struct {
	name  string
	color string
}

var demoLabels = []demoLabel{
	{"Work", "#3B82F6"},
	{"Personal", "#10B981"},
	{"Finance", "#F59E0B"},
	{"Travel", "#8B5CF6"},
	{"Shopping", "#EC4899"},
	{"Health", "#06B6D4"},
}

type demoMail struct {
	from        string
	subject     string
	body        string
	read        bool
	starred     bool
	important   bool
	attachments bool
	labels      []string
}

var demoMails = []demoMail{
	{"hr@techcorp.com", "Welcome to TechCorp - Your First Day Tomorrow",
		"Hi Sarah, Welcome to TechCorp! Your orientation starts tomorrow at 9 AM in the main conference room. Please bring your ID and laptop.",
		false, true, true, true, []string{"Work"}},
	{"support@netflix.com", "Your Netflix subscription has been renewed",
		"Hi Sarah, Your Netflix subscription has been successfully renewed for $15.99/month. Your next billing date is March 15.",
		true, false, false, false, []string{"Personal"}},
	{"noreply@linkedin.com", "You have 3 new connection requests",
		"You have 3 new connection requests from professionals in your network.",
		false, false, false, false, []string{"Work"}},
	{"booking@airbnb.com", "Your upcoming trip to Paris - Important details",
		"Your Airbnb reservation in Paris is confirmed for March 20-25. Check-in is at 3 PM.",
		false, true, true, true, []string{"Travel", "Personal"}},
	{"orders@amazon.com", "Your Amazon order #123-4567890-1234567 has shipped",
		`Your order containing "Wireless Bluetooth Headphones" has shipped and is expected to arrive on March 12.`,
		true, false, false, false, []string{"Shopping"}},
	{"team@slack.com", "Sarah Johnson joined #general",
		"Sarah Johnson has joined the #general channel. Welcome to the team!",
		true, false, false, false, []string{"Work"}},
	{"noreply@spotify.com", "Your weekly mix is ready",
		"Your personalized weekly mix is ready to stream. Discover new music tailored just for you.",
		false, false, false, false, []string{"Personal"}},
	{"security@chase.com", "Security Alert: New login detected",
		"We detected a new login to your Chase account from San Francisco, CA. If this was you, no action is needed.",
		false, true, true, false, []string{"Finance"}},
	{"appointments@healthcare.com", "Reminder: Annual physical exam tomorrow at 2 PM",
		"This is a reminder for your annual physical exam with Dr. Smith tomorrow at 2 PM. Please arrive 15 minutes early.",
		false, true, true, false, []string{"Health"}},
	{"newsletter@techcrunch.com", "TechCrunch Daily: Latest in Tech News",
		"Today's top stories: new phone features, an Android beta, and startup funding reaches new heights in Q1.",
		false, false, false, false, []string{"Work"}},
	{"support@uber.com", "Your ride receipt from yesterday",
		"Here's your receipt for your Uber ride from San Francisco Airport to Downtown. Total: $45.20.",
		true, false, false, true, []string{"Travel"}},
	{"noreply@github.com", "Pull request #1234 needs your review",
		`A pull request titled "Add new user authentication feature" in the email-api repository needs your review.`,
		false, true, true, false, []string{"Work"}},
	{"orders@starbucks.com", "Your Starbucks order is ready for pickup",
		"Your grande caramel macchiato is ready for pickup at the Market Street location. Order #98765.",
		true, false, false, false, []string{"Personal"}},
	{"team@asana.com", "New task assigned: Review Q1 marketing strategy",
		`You have been assigned a new task: "Review Q1 marketing strategy" due by March 15.`,
		false, true, true, true, []string{"Work"}},
	{"noreply@eventbrite.com", "Your tickets for Tech Conference 2024",
		"Your tickets for Tech Conference 2024 on April 15-17 are confirmed. Event details and QR codes are attached.",
		false, true, true, true, []string{"Work", "Travel"}},
	{"support@dropbox.com", "Storage alert: You're using 85% of your space",
		"You're currently using 8.5 GB of your 10 GB Dropbox storage.",
		false, false, false, false, []string{"Work"}},
	{"orders@sephora.com", "Your Sephora order has been delivered",
		"Your order has been delivered to your doorstep. Please check your package.",
		true, false, false, false, []string{"Shopping"}},
	{"noreply@calendly.com", "New meeting scheduled: Interview with John Smith",
		`A new meeting has been scheduled: "Interview with John Smith" on March 18 at 10 AM.`,
		false, true, true, false, []string{"Work"}},
	{"support@amazon.com", "Your Amazon Prime membership expires in 7 days",
		"Your Amazon Prime membership will expire on March 20. Renew now to continue enjoying free shipping.",
		false, false, false, false, []string{"Shopping"}},
}

var demoNotifications = []struct {
	title   string
	message string
	typ     domain.NotificationType
}{
	{"Welcome to Email API", "Your account has been successfully created. Welcome to our email service!", domain.NotificationSuccess},
	{"New Feature Available", "We have added new email filtering and labeling features.", domain.NotificationInfo},
	{"Storage Alert", "You are using 85% of your email storage. Consider upgrading your plan.", domain.NotificationWarning},
	{"Backup Complete", "Your email data has been successfully backed up.", domain.NotificationSuccess},
	{"Maintenance Notice", "Scheduled maintenance will occur tonight at 2 AM EST.", domain.NotificationInfo},
	{"New Device Login", "A new device has logged into your account from San Francisco, CA.", domain.NotificationWarning},
	{"Backup Failed", "Your email backup failed. Please try again or contact support.", domain.NotificationError},
	{"Sync Error", "There was an error syncing your emails. Please check your internet connection.", domain.NotificationError},
}

var demoMessages = []struct {
	title   string
	content string
	typ     domain.MessageType
}{
	{"System Maintenance", "Scheduled maintenance will occur tonight at 2 AM EST.", domain.MessageSystem},
	{"Account Update", "Your account settings have been updated successfully.", domain.MessageUser},
	{"Welcome Message", "Welcome to our email service! Explore our features and let us know if you need help.", domain.MessageSystem},
	{"Security Alert", "We detected unusual activity on your account. Please review your recent login activity.", domain.MessageSystem},
	{"Password Reset", "Your password has been reset successfully.", domain.MessageUser},
	{"Theme Updated", "Your email theme has been updated to dark mode.", domain.MessageUser},
	{"Data Export", "Your email data export is ready for download.", domain.MessageSystem},
}

var demoAttachments = []struct {
	name string
	typ  string
}{
	{"document.pdf", "application/pdf"},
	{"screenshot.jpg", "image/jpeg"},
	{"report.docx", "application/vnd.openxmlformats-officedocument.wordprocessingml.document"},
}

type seedSummary struct {
	User          domain.User
	Labels        int
	Emails        int
	Notifications int
	Messages      int
}

// seedDemo registers the demo account and fills its mailbox. Emails are
// spread back in time from now, one every three hours.
func seedDemo(ctx context.Context, a *app.App, now time.Time) (seedSummary, error) {
	user, err := a.Register(ctx, app.RegisterInput{Email: demoEmail, Password: demoPassword, Name: demoName})
	if err != nil {
		return seedSummary{}, fmt.Errorf("register demo user: %w", err)
	}
	sum := seedSummary{User: user}

	for _, l := range demoLabels {
		if _, err := a.CreateLabel(ctx, user.ID, l.name, l.color); err != nil {
			return sum, fmt.Errorf("create label %s: %w", l.name, err)
		}
		sum.Labels++
	}

	for i, m := range demoMails {
		in := app.ImportedEmail{
			From:        m.from,
			To:          demoEmail,
			Subject:     m.subject,
			Body:        m.body,
			Timestamp:   now.Add(-time.Duration(i*3) * time.Hour),
			IsRead:      m.read,
			IsStarred:   m.starred,
			IsImportant: m.important,
			Labels:      m.labels,
		}
		if m.attachments {
			pick := demoAttachments[rand.IntN(len(demoAttachments))]
			in.Attachments = []app.ImportedAttachment{{
				Filename:    pick.name,
				ContentType: pick.typ,
				URL:         "/uploads/" + pick.name,
				Size:        100_000 + rand.Int64N(5_000_000),
			}}
		}
		if _, err := a.ImportEmail(ctx, user.ID, in); err != nil {
			return sum, fmt.Errorf("import %q: %w", m.subject, err)
		}
		sum.Emails++
	}

	for _, n := range demoNotifications {
		if _, err := a.CreateNotification(ctx, user.ID, n.title, n.message, n.typ); err != nil {
			return sum, fmt.Errorf("create notification: %w", err)
		}
		sum.Notifications++
	}
	for _, m := range demoMessages {
		if _, err := a.CreateMessage(ctx, user.ID, m.title, m.content, m.typ); err != nil {
			return sum, fmt.Errorf("create message: %w", err)
		}
		sum.Messages++
	}
	return sum, nil
}
