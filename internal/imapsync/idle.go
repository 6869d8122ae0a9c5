package imapsync

import (
	"context"
	"log"
	"time"

	idle "github.com/emersion/go-imap-idle"
	imapclient "github.com/emersion/go-imap/client"
)

// watcherBackoff is how long the watcher sleeps after an error before
// reconnecting.
const watcherBackoff = 10 * time.Second

// WatchInbox keeps an IMAP IDLE session open on INBOX and invokes
// onUpdate whenever the server reports new messages. connect is called
// for every (re)connection so each session gets a fresh access token.
// This function blocks until the context is canceled.
func WatchInbox(ctx context.Context, connect func(ctx context.Context) (*Client, error), onUpdate func(ctx context.Context)) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		c, err := connect(ctx)
		if err != nil {
			log.Printf("Warning: inbox watcher connect failed: %v", err)
			sleepOrDone(ctx, watcherBackoff)
			continue
		}

		runIdleLoop(ctx, c, onUpdate)
		_ = c.Logout()

		sleepOrDone(ctx, watcherBackoff)
	}
}

// runIdleLoop idles on INBOX and fires onUpdate for mailbox updates.
// Returns when the context is canceled or the session dies.
func runIdleLoop(ctx context.Context, c *Client, onUpdate func(ctx context.Context)) {
	if _, err := c.c.Select("INBOX", true); err != nil {
		log.Printf("Warning: inbox watcher failed to select INBOX: %v", err)
		return
	}

	idleClient := idle.NewClient(c.c)

	updates := make(chan imapclient.Update, 10)
	c.c.Updates = updates

	stop := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- idleClient.IdleWithFallback(stop, 5*time.Minute)
	}()

	for {
		select {
		case <-ctx.Done():
			close(stop)
			<-done
			return
		case err := <-done:
			if err != nil {
				log.Printf("Warning: inbox watcher idle ended: %v", err)
			}
			return
		case update := <-updates:
			mboxUpdate, ok := update.(*imapclient.MailboxUpdate)
			if !ok || mboxUpdate.Mailbox == nil {
				continue
			}
			if mboxUpdate.Mailbox.Name != "INBOX" || mboxUpdate.Mailbox.Messages == 0 {
				continue
			}
			onUpdate(ctx)
		}
	}
}

func sleepOrDone(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
