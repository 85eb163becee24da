// Package complaint drives complaints through review and keeps their
// transactions in step with the transfers held by the payment gateway.
package complaint

import (
	"context"
	"errors"
	"fmt"
	"log"
	"mime"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/reclaim/backend/internal/models"
	"github.com/reclaim/backend/internal/services/wise"
	"github.com/reclaim/backend/internal/store"
	"github.com/shopspring/decimal"
)

const (
	defaultGatewayTimeout = 15 * time.Second
	maxTitleLength        = 120
	amountPlaces          = 4
)

// photoExtensions maps accepted photo content types to object key extensions
var photoExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/jpg":  ".jpg",
	"image/png":  ".png",
}

// TransferGateway issues, funds and cancels transfers on the payment provider
type TransferGateway interface {
	CreateRecipientAccount(ctx context.Context, fullName, iban string) (int64, error)
	CreateQuote(ctx context.Context, amount decimal.Decimal) (uuid.UUID, error)
	CreateTransfer(ctx context.Context, targetAccountID int64, quoteID uuid.UUID) (int64, error)
	FundTransfer(ctx context.Context, transferID int64) error
	CancelTransfer(ctx context.Context, transferID int64) error
}

// Uploader stores complaint photos and returns their public URL
type Uploader interface {
	UploadObject(ctx context.Context, data []byte, key, contentType string) (string, error)
}

// Notifier delivers outcome emails
type Notifier interface {
	SendEmail(ctx context.Context, subject, body string, recipients []string) error
}

// ComplaintRepository persists complaints
type ComplaintRepository interface {
	Create(ctx context.Context, complaint *models.Complaint) error
	Get(ctx context.Context, id uint) (*models.Complaint, error)
	List(ctx context.Context, q store.Query) ([]models.Complaint, error)
	Transition(ctx context.Context, id uint, from, to models.ComplaintStatus) (*models.Complaint, error)
	Delete(ctx context.Context, id uint) error
}

// TransactionRepository persists gateway transactions
type TransactionRepository interface {
	Create(ctx context.Context, transaction *models.Transaction) error
	GetByComplaintID(ctx context.Context, complaintID uint) (*models.Transaction, error)
}

// UserRepository looks up complainers for notifications
type UserRepository interface {
	Get(ctx context.Context, id uint) (*models.User, error)
}

// Options tunes the service
type Options struct {
	// GatewayTimeout bounds each call to the payment gateway
	GatewayTimeout time.Duration
}

// CreateInput is a complaint as submitted by a complainer
type CreateInput struct {
	Title       string
	Description string
	Amount      decimal.Decimal
	Photo       []byte
	ContentType string
}

// Service handles the complaint lifecycle
type Service struct {
	complaints   ComplaintRepository
	transactions TransactionRepository
	users        UserRepository
	gateway      TransferGateway
	storage      Uploader
	notifier     Notifier
	opts         Options
}

// NewService creates a new complaint service
func NewService(
	complaints ComplaintRepository,
	transactions TransactionRepository,
	users UserRepository,
	gateway TransferGateway,
	storage Uploader,
	notifier Notifier,
	opts Options,
) *Service {
	if opts.GatewayTimeout <= 0 {
		opts.GatewayTimeout = defaultGatewayTimeout
	}
	return &Service{
		complaints:   complaints,
		transactions: transactions,
		users:        users,
		gateway:      gateway,
		storage:      storage,
		notifier:     notifier,
		opts:         opts,
	}
}

// CreateComplaint stores the photo, records the complaint and issues an
// unfunded transfer for it. If the gateway fails after the complaint was
// written, the complaint stays PENDING without a transaction and the error is
// returned; nothing is rolled back.
func (s *Service) CreateComplaint(ctx context.Context, complainer *models.User, in CreateInput) (*models.Complaint, error) {
	if err := requireRole(complainer, models.RoleComplainer); err != nil {
		return nil, err
	}
	if !complainer.HasIBAN() {
		return nil, ErrMissingIBAN
	}
	ext, err := photoExtension(in.ContentType)
	if err != nil {
		return nil, err
	}
	if err := validateInput(in); err != nil {
		return nil, err
	}

	key := fmt.Sprintf("complaints/%s-%s%s", slug.Make(in.Title), uuid.New().String(), ext)
	photoURL, err := s.storage.UploadObject(ctx, in.Photo, key, in.ContentType)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}

	complaint := &models.Complaint{
		Title:        strings.TrimSpace(in.Title),
		Description:  in.Description,
		PhotoURL:     photoURL,
		Amount:       in.Amount,
		Status:       models.ComplaintStatusPending,
		ComplainerID: complainer.ID,
	}
	if err := s.complaints.Create(ctx, complaint); err != nil {
		return nil, err
	}

	if err := s.issueTransaction(ctx, complainer, complaint); err != nil {
		log.Printf("Complaint %d left pending without a transaction: %v", complaint.ID, err)
		return nil, err
	}

	return complaint, nil
}

// issueTransaction creates the recipient, quote and transfer on the gateway
// and records them locally
func (s *Service) issueTransaction(ctx context.Context, complainer *models.User, complaint *models.Complaint) error {
	var (
		accountID  int64
		quoteID    uuid.UUID
		transferID int64
	)

	err := s.callGateway(ctx, func(ctx context.Context) (err error) {
		accountID, err = s.gateway.CreateRecipientAccount(ctx, complainer.FullName(), *complainer.IBAN)
		return err
	})
	if err != nil {
		return fmt.Errorf("%w: creating recipient account: %v", ErrGatewayUnavailable, err)
	}

	err = s.callGateway(ctx, func(ctx context.Context) (err error) {
		quoteID, err = s.gateway.CreateQuote(ctx, complaint.Amount)
		return err
	})
	if err != nil {
		return fmt.Errorf("%w: creating quote: %v", ErrGatewayUnavailable, err)
	}

	err = s.callGateway(ctx, func(ctx context.Context) (err error) {
		transferID, err = s.gateway.CreateTransfer(ctx, accountID, quoteID)
		return err
	})
	if err != nil {
		return fmt.Errorf("%w: creating transfer: %v", ErrGatewayUnavailable, err)
	}

	complaintID := complaint.ID
	transaction := &models.Transaction{
		QuoteID:         quoteID,
		TransferID:      transferID,
		TargetAccountID: accountID,
		Amount:          complaint.Amount,
		ComplaintID:     &complaintID,
	}
	return s.transactions.Create(ctx, transaction)
}

// ApproveComplaint marks a pending complaint APPROVED and funds its transfer.
// When the gateway reports the transfer as already funded the status change
// is kept and ErrAlreadyApproved is returned.
func (s *Service) ApproveComplaint(ctx context.Context, approver *models.User, id uint) (*models.Complaint, error) {
	if err := requireRole(approver, models.RoleApprover); err != nil {
		return nil, err
	}

	complaint, err := s.review(ctx, id, models.ComplaintStatusApproved)
	if err != nil {
		return complaint, err
	}

	transaction, err := s.transactionFor(ctx, id)
	if err != nil {
		return complaint, err
	}

	err = s.callGateway(ctx, func(ctx context.Context) error {
		return s.gateway.FundTransfer(ctx, transaction.TransferID)
	})
	if errors.Is(err, wise.ErrAlreadyFunded) {
		return complaint, ErrAlreadyApproved
	}
	if err != nil {
		return complaint, fmt.Errorf("%w: funding transfer %d: %v", ErrGatewayUnavailable, transaction.TransferID, err)
	}

	s.notify(ctx, complaint,
		"Your complaint was approved",
		fmt.Sprintf("Your complaint %q was approved. %s will be transferred to your bank account.", complaint.Title, complaint.Amount.StringFixed(2)),
	)
	return complaint, nil
}

// RejectComplaint marks a pending complaint REJECTED and cancels its transfer.
// When the gateway reports the transfer as already cancelled the status
// change is kept and ErrAlreadyCancelled is returned.
func (s *Service) RejectComplaint(ctx context.Context, approver *models.User, id uint) (*models.Complaint, error) {
	if err := requireRole(approver, models.RoleApprover); err != nil {
		return nil, err
	}

	complaint, err := s.review(ctx, id, models.ComplaintStatusRejected)
	if err != nil {
		return complaint, err
	}

	transaction, err := s.transactionFor(ctx, id)
	if err != nil {
		return complaint, err
	}

	err = s.callGateway(ctx, func(ctx context.Context) error {
		return s.gateway.CancelTransfer(ctx, transaction.TransferID)
	})
	if errors.Is(err, wise.ErrAlreadyCancelled) {
		return complaint, ErrAlreadyCancelled
	}
	if err != nil {
		return complaint, fmt.Errorf("%w: cancelling transfer %d: %v", ErrGatewayUnavailable, transaction.TransferID, err)
	}

	s.notify(ctx, complaint,
		"Your complaint was rejected",
		fmt.Sprintf("Your complaint %q was rejected.", complaint.Title),
	)
	return complaint, nil
}

// DeleteComplaint removes a complaint in any status. Its transaction is kept.
func (s *Service) DeleteComplaint(ctx context.Context, admin *models.User, id uint) error {
	if err := requireRole(admin, models.RoleAdmin); err != nil {
		return err
	}
	return s.complaints.Delete(ctx, id)
}

// ListComplaints returns one page of complaints. Complainers only see their own.
func (s *Service) ListComplaints(ctx context.Context, user *models.User, q store.Query) ([]models.Complaint, error) {
	if user == nil {
		return nil, ErrForbidden
	}
	switch user.Role {
	case models.RoleComplainer:
		q = q.WithComplainer(user.ID)
	case models.RoleApprover, models.RoleAdmin:
	default:
		return nil, ErrForbidden
	}
	return s.complaints.List(ctx, q)
}

// review moves a complaint out of PENDING. A complaint that already holds the
// target status reports the matching idempotency error; one reviewed the other
// way reports ErrInvalidTransition. The gateway is not called in either case.
func (s *Service) review(ctx context.Context, id uint, to models.ComplaintStatus) (*models.Complaint, error) {
	complaint, err := s.complaints.Transition(ctx, id, models.ComplaintStatusPending, to)
	if !errors.Is(err, store.ErrStatusConflict) {
		return complaint, err
	}

	if !complaint.Status.Terminal() || complaint.Status != to {
		return complaint, ErrInvalidTransition
	}
	if to == models.ComplaintStatusApproved {
		return complaint, ErrAlreadyApproved
	}
	return complaint, ErrAlreadyCancelled
}

func (s *Service) transactionFor(ctx context.Context, complaintID uint) (*models.Transaction, error) {
	transaction, err := s.transactions.GetByComplaintID(ctx, complaintID)
	if errors.Is(err, store.ErrNotFound) {
		log.Printf("Complaint %d was reviewed but has no transaction", complaintID)
		return nil, ErrTransactionMissing
	}
	return transaction, err
}

// callGateway runs one gateway call under the configured timeout
func (s *Service) callGateway(ctx context.Context, call func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.opts.GatewayTimeout)
	defer cancel()
	return call(ctx)
}

// notify emails the complainer. Failures are logged and never returned.
func (s *Service) notify(ctx context.Context, complaint *models.Complaint, subject, body string) {
	complainer, err := s.users.Get(ctx, complaint.ComplainerID)
	if err != nil {
		log.Printf("Error loading complainer %d for complaint %d: %v", complaint.ComplainerID, complaint.ID, err)
		return
	}
	if err := s.notifier.SendEmail(ctx, subject, body, []string{complainer.Email}); err != nil {
		log.Printf("Error notifying complainer of complaint %d: %v", complaint.ID, err)
	}
}

func requireRole(user *models.User, role models.Role) error {
	if user == nil || user.Role != role {
		return ErrForbidden
	}
	return nil
}

func photoExtension(contentType string) (string, error) {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", ErrUnsupportedPhoto
	}
	ext, ok := photoExtensions[strings.ToLower(mediaType)]
	if !ok {
		return "", ErrUnsupportedPhoto
	}
	return ext, nil
}

func validateInput(in CreateInput) error {
	title := strings.TrimSpace(in.Title)
	switch {
	case title == "":
		return fmt.Errorf("%w: title is required", ErrInvalidComplaint)
	case utf8.RuneCountInString(title) > maxTitleLength:
		return fmt.Errorf("%w: title exceeds %d characters", ErrInvalidComplaint, maxTitleLength)
	case in.Amount.IsNegative():
		return fmt.Errorf("%w: amount must not be negative", ErrInvalidComplaint)
	case !in.Amount.Equal(in.Amount.Round(amountPlaces)):
		return fmt.Errorf("%w: amount has more than %d decimal places", ErrInvalidComplaint, amountPlaces)
	case len(in.Photo) == 0:
		return fmt.Errorf("%w: photo is empty", ErrInvalidComplaint)
	}
	return nil
}
