package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"studenthub-sync/internal/models"
)

type RestClientMock struct {
	mock.Mock
}

func (m *RestClientMock) LikePost(ctx context.Context, postID string) (models.LikeResult, error) {
	args := m.Called(ctx, postID)
	var res models.LikeResult
	if val := args.Get(0); val != nil {
		res = val.(models.LikeResult)
	}
	return res, args.Error(1)
}

func (m *RestClientMock) SavePost(ctx context.Context, postID string) (models.SaveResult, error) {
	args := m.Called(ctx, postID)
	var res models.SaveResult
	if val := args.Get(0); val != nil {
		res = val.(models.SaveResult)
	}
	return res, args.Error(1)
}

func (m *RestClientMock) AddComment(ctx context.Context, postID, content, parentID string) (models.Comment, error) {
	args := m.Called(ctx, postID, content, parentID)
	var comment models.Comment
	if val := args.Get(0); val != nil {
		comment = val.(models.Comment)
	}
	return comment, args.Error(1)
}

func (m *RestClientMock) SendMessage(ctx context.Context, conversationID string, req models.SendMessageRequest) (models.Message, error) {
	args := m.Called(ctx, conversationID, req)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *RestClientMock) MarkRead(ctx context.Context, conversationID string) error {
	args := m.Called(ctx, conversationID)
	return args.Error(0)
}

func (m *RestClientMock) PinConversation(ctx context.Context, conversationID string) error {
	args := m.Called(ctx, conversationID)
	return args.Error(0)
}

func (m *RestClientMock) UnpinConversation(ctx context.Context, conversationID string) error {
	args := m.Called(ctx, conversationID)
	return args.Error(0)
}

func (m *RestClientMock) CreateConversation(ctx context.Context, req models.CreateConversationRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

type SnapshotFetcherMock struct {
	mock.Mock
}

func (m *SnapshotFetcherMock) FetchConversations(ctx context.Context) ([]models.Conversation, error) {
	args := m.Called(ctx)
	var convs []models.Conversation
	if val := args.Get(0); val != nil {
		convs = val.([]models.Conversation)
	}
	return convs, args.Error(1)
}

func (m *SnapshotFetcherMock) FetchMessages(ctx context.Context, conversationID string) ([]models.Message, error) {
	args := m.Called(ctx, conversationID)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

type ReceiptSenderMock struct {
	mock.Mock
}

func (m *ReceiptSenderMock) SendReadReceipt(conversationID, messageID string) error {
	args := m.Called(conversationID, messageID)
	return args.Error(0)
}
