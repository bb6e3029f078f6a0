package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"dating-app/internal/database"
	"dating-app/internal/models"
	"dating-app/internal/presence"
)

// fakeDB backs the service tests with in-memory state. The embedded
// interface panics on anything a test does not expect to touch.
type fakeDB struct {
	database.Database
	mu       sync.Mutex
	users    map[string]*models.User
	messages []*models.Message
	groups   map[string]*models.Group
	nextID   int
	failSave bool
}

func newFakeDB(usernames ...string) *fakeDB {
	db := &fakeDB{
		users:  make(map[string]*models.User),
		groups: make(map[string]*models.Group),
	}
	for i, name := range usernames {
		db.users[name] = &models.User{ID: i + 1, Username: name, DisplayName: "The " + name}
	}
	return db
}

func (f *fakeDB) GetUserByUsername(_ context.Context, username string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.users[username], nil
}

func (f *fakeDB) CreateMessage(_ context.Context, msg *models.Message) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSave {
		return nil, errors.New("storage unavailable")
	}
	f.nextID++
	msg.ID = f.nextID
	msg.SentAt = time.Now().UTC()
	f.messages = append(f.messages, msg)
	return msg, nil
}

func (f *fakeDB) GetMessage(_ context.Context, id int) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.messages {
		if m.ID == id {
			return m, nil
		}
	}
	return nil, nil
}

func (f *fakeDB) GetMessageThread(_ context.Context, userA, userB string) ([]*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var thread []*models.Message
	for _, m := range f.messages {
		if (m.SenderUsername == userA && m.RecipientUsername == userB && !m.SenderDeleted) ||
			(m.SenderUsername == userB && m.RecipientUsername == userA && !m.RecipientDeleted) {
			thread = append(thread, m)
		}
	}
	return thread, nil
}

func (f *fakeDB) MarkThreadRead(_ context.Context, reader, other string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now().UTC()
	for _, m := range f.messages {
		if m.RecipientUsername == reader && m.SenderUsername == other && m.ReadAt == nil {
			m.ReadAt = &now
		}
	}
	return nil
}

func (f *fakeDB) SetMessageDeleted(_ context.Context, id int, senderDeleted, recipientDeleted bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.messages {
		if m.ID == id {
			m.SenderDeleted = senderDeleted
			m.RecipientDeleted = recipientDeleted
		}
	}
	return nil
}

func (f *fakeDB) DeleteMessage(_ context.Context, id int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, m := range f.messages {
		if m.ID == id {
			f.messages = append(f.messages[:i], f.messages[i+1:]...)
			return nil
		}
	}
	return nil
}

func (f *fakeDB) GetGroup(_ context.Context, name string) (*models.Group, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.groups[name], nil
}

func (f *fakeDB) GetGroupForConnection(_ context.Context, connectionID string) (*models.Group, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, g := range f.groups {
		for _, c := range g.Connections {
			if c.ConnectionID == connectionID {
				return g, nil
			}
		}
	}
	return nil, nil
}

func (f *fakeDB) AddConnectionToGroup(_ context.Context, groupName string, conn *models.Connection) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSave {
		return errors.New("storage unavailable")
	}
	group, ok := f.groups[groupName]
	if !ok {
		group = &models.Group{Name: groupName}
		f.groups[groupName] = group
	}
	group.Connections = append(group.Connections, conn)
	return nil
}

func (f *fakeDB) RemoveConnection(_ context.Context, connectionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, g := range f.groups {
		for i, c := range g.Connections {
			if c.ConnectionID == connectionID {
				g.Connections = append(g.Connections[:i], g.Connections[i+1:]...)
				return nil
			}
		}
	}
	return nil
}

func (f *fakeDB) messageCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.messages)
}

func newTestService(db *fakeDB) (*MessageService, *presence.Tracker) {
	tracker := presence.NewTracker()
	return NewMessageService(db, tracker), tracker
}

func TestSendMessageRejectsSelf(t *testing.T) {
	db := newFakeDB("anna")
	svc, _ := newTestService(db)

	_, err := svc.SendMessage(context.Background(), "anna", &models.CreateMessageRequest{
		RecipientUsername: "anna",
		Content:           "hi me",
	})
	if !errors.Is(err, ErrSelfMessage) {
		t.Fatalf("got %v, want ErrSelfMessage", err)
	}
	if db.messageCount() != 0 {
		t.Error("no message record should be created for a self message")
	}
}

func TestSendMessageUnknownRecipient(t *testing.T) {
	db := newFakeDB("anna")
	svc, _ := newTestService(db)

	_, err := svc.SendMessage(context.Background(), "anna", &models.CreateMessageRequest{
		RecipientUsername: "nobody",
		Content:           "hello?",
	})
	if !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("got %v, want ErrUserNotFound", err)
	}
	if db.messageCount() != 0 {
		t.Error("no message record should be created when the recipient does not resolve")
	}
}

func TestSendMessageMarksReadWhenRecipientInGroup(t *testing.T) {
	db := newFakeDB("anna", "todd")
	svc, tracker := newTestService(db)
	tracker.Connect("todd", "presence-1")

	ctx := context.Background()
	if _, _, err := svc.JoinConversation(ctx, "todd", "anna", "conn-todd"); err != nil {
		t.Fatalf("join: %v", err)
	}

	result, err := svc.SendMessage(ctx, "anna", &models.CreateMessageRequest{
		RecipientUsername: "todd",
		Content:           "hi",
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	if result.Message.ReadAt == nil {
		t.Error("message to a live group member should be marked read at send time")
	}
	if len(result.NotifyConnections) != 0 {
		t.Errorf("no alert should go out when the recipient is viewing the conversation, got %d", len(result.NotifyConnections))
	}
	if result.GroupName != "anna-todd" {
		t.Errorf("group name = %q, want anna-todd", result.GroupName)
	}
}

func TestSendMessageNotifiesAbsentRecipient(t *testing.T) {
	db := newFakeDB("anna", "todd")
	svc, tracker := newTestService(db)

	// todd is online on two devices but not viewing the conversation.
	tracker.Connect("todd", "presence-1")
	tracker.Connect("todd", "presence-2")

	result, err := svc.SendMessage(context.Background(), "anna", &models.CreateMessageRequest{
		RecipientUsername: "todd",
		Content:           "you there?",
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	if result.Message.ReadAt != nil {
		t.Error("message to an absent recipient should stay unread")
	}
	if len(result.NotifyConnections) != 2 {
		t.Errorf("expected an alert per presence connection, got %d", len(result.NotifyConnections))
	}
}

func TestSendMessageOfflineRecipientNoNotifications(t *testing.T) {
	db := newFakeDB("anna", "todd")
	svc, _ := newTestService(db)

	result, err := svc.SendMessage(context.Background(), "anna", &models.CreateMessageRequest{
		RecipientUsername: "todd",
		Content:           "still there?",
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	if result.Message.ReadAt != nil {
		t.Error("message should stay unread")
	}
	if len(result.NotifyConnections) != 0 {
		t.Errorf("offline recipient has no connections to notify, got %d", len(result.NotifyConnections))
	}
}

func TestSendMessagePersistenceFailure(t *testing.T) {
	db := newFakeDB("anna", "todd")
	svc, _ := newTestService(db)
	db.failSave = true

	result, err := svc.SendMessage(context.Background(), "anna", &models.CreateMessageRequest{
		RecipientUsername: "todd",
		Content:           "hi",
	})
	if err == nil {
		t.Fatal("expected an error when persistence fails")
	}
	if result != nil {
		t.Error("a failed send must not produce a result to broadcast")
	}
}

func TestJoinConversationRequiresPeer(t *testing.T) {
	db := newFakeDB("anna")
	svc, _ := newTestService(db)

	if _, _, err := svc.JoinConversation(context.Background(), "anna", "", "conn-1"); !errors.Is(err, ErrMissingPeer) {
		t.Fatalf("got %v, want ErrMissingPeer", err)
	}
}

func TestJoinConversationCreatesGroupAndReturnsThread(t *testing.T) {
	db := newFakeDB("anna", "todd")
	svc, _ := newTestService(db)
	ctx := context.Background()

	if _, err := svc.SendMessage(ctx, "anna", &models.CreateMessageRequest{
		RecipientUsername: "todd",
		Content:           "first",
	}); err != nil {
		t.Fatalf("send: %v", err)
	}

	group, thread, err := svc.JoinConversation(ctx, "todd", "anna", "conn-todd")
	if err != nil {
		t.Fatalf("join: %v", err)
	}

	if group.Name != "anna-todd" {
		t.Errorf("group name = %q, want anna-todd", group.Name)
	}
	if !group.HasMember("todd") {
		t.Error("joining connection should be a group member")
	}
	if len(thread) != 1 || thread[0].Content != "first" {
		t.Errorf("thread should contain the persisted history, got %d messages", len(thread))
	}
	if thread[0].ReadAt != nil {
		t.Error("join-time thread delivery must not mark messages read")
	}
}

func TestConcurrentJoinsShareOneGroup(t *testing.T) {
	db := newFakeDB("anna", "todd")
	svc, _ := newTestService(db)

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			caller, other := "anna", "todd"
			if i == 1 {
				caller, other = "todd", "anna"
			}
			if _, _, err := svc.JoinConversation(context.Background(), caller, other, fmt.Sprintf("conn-%d", i)); err != nil {
				t.Errorf("join %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	if len(db.groups) != 1 {
		t.Fatalf("concurrent joins created %d groups, want 1", len(db.groups))
	}
	group := db.groups["anna-todd"]
	if group == nil || len(group.Connections) != 2 {
		t.Error("both connections should belong to the single group")
	}
}

func TestLeaveConversationWithoutJoinIsNoOp(t *testing.T) {
	db := newFakeDB("anna")
	svc, _ := newTestService(db)

	group, err := svc.LeaveConversation(context.Background(), "never-joined")
	if err != nil {
		t.Fatalf("leave of an unknown connection should not error, got %v", err)
	}
	if group != nil {
		t.Error("leave of an unknown connection should return no group to broadcast")
	}
}

func TestLeaveConversationRemovesMembership(t *testing.T) {
	db := newFakeDB("anna", "todd")
	svc, _ := newTestService(db)
	ctx := context.Background()

	if _, _, err := svc.JoinConversation(ctx, "anna", "todd", "conn-anna"); err != nil {
		t.Fatalf("join anna: %v", err)
	}
	if _, _, err := svc.JoinConversation(ctx, "todd", "anna", "conn-todd"); err != nil {
		t.Fatalf("join todd: %v", err)
	}

	group, err := svc.LeaveConversation(ctx, "conn-todd")
	if err != nil {
		t.Fatalf("leave: %v", err)
	}

	if group == nil || len(group.Connections) != 1 {
		t.Fatal("remaining group should hold only anna's connection")
	}
	if group.Connections[0].Username != "anna" {
		t.Errorf("remaining member = %q, want anna", group.Connections[0].Username)
	}
}

func TestGetThreadMarksUnreadMessagesRead(t *testing.T) {
	db := newFakeDB("anna", "todd")
	svc, _ := newTestService(db)
	ctx := context.Background()

	if _, err := svc.SendMessage(ctx, "anna", &models.CreateMessageRequest{
		RecipientUsername: "todd",
		Content:           "unread until fetched",
	}); err != nil {
		t.Fatalf("send: %v", err)
	}

	thread, err := svc.GetThread(ctx, "todd", "anna")
	if err != nil {
		t.Fatalf("get thread: %v", err)
	}

	if len(thread) != 1 {
		t.Fatalf("got %d messages, want 1", len(thread))
	}
	if thread[0].ReadAt == nil {
		t.Error("fetching the thread is the explicit read action and should set ReadAt")
	}
}

func TestDeleteMessageRules(t *testing.T) {
	db := newFakeDB("anna", "todd", "lisa")
	svc, _ := newTestService(db)
	ctx := context.Background()

	result, err := svc.SendMessage(ctx, "anna", &models.CreateMessageRequest{
		RecipientUsername: "todd",
		Content:           "to be deleted",
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	id := result.Message.ID

	if err := svc.DeleteMessage(ctx, "lisa", id); !errors.Is(err, ErrForbidden) {
		t.Errorf("third party delete: got %v, want ErrForbidden", err)
	}

	if err := svc.DeleteMessage(ctx, "anna", id); err != nil {
		t.Fatalf("sender delete: %v", err)
	}
	if thread, _ := svc.GetThread(ctx, "anna", "todd"); len(thread) != 0 {
		t.Error("deleted message should disappear from the sender's thread")
	}
	if thread, _ := svc.GetThread(ctx, "todd", "anna"); len(thread) != 1 {
		t.Error("recipient should still see the message")
	}

	if err := svc.DeleteMessage(ctx, "todd", id); err != nil {
		t.Fatalf("recipient delete: %v", err)
	}
	if db.messageCount() != 0 {
		t.Error("message deleted by both sides should be removed")
	}

	if err := svc.DeleteMessage(ctx, "anna", 999); !errors.Is(err, ErrMessageNotFound) {
		t.Errorf("missing message: got %v, want ErrMessageNotFound", err)
	}
}
