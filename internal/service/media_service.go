package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"schoolhouse/api/internal/audit"
	"schoolhouse/api/internal/ids"
	"schoolhouse/api/internal/media/sniffer"
	"schoolhouse/api/internal/media/svg"
	"schoolhouse/api/internal/models"
	"schoolhouse/api/internal/policy"
	"schoolhouse/api/internal/queue"
	"schoolhouse/api/internal/repository"
	"schoolhouse/api/internal/security"
	"schoolhouse/api/internal/storage"
)

type ObjectStorage interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Open(ctx context.Context, key string) (io.ReadCloser, storage.ObjectInfo, error)
	Remove(ctx context.Context, key string) error
}

// CleanupQueue hands object deletions to the worker.
type CleanupQueue interface {
	Enqueue(ctx context.Context, task queue.Task) (string, error)
}

type MediaService struct {
	base
	objects  ObjectStorage
	cleanup  CleanupQueue
	signer   security.MediaURLSigner
	maxBytes int64
	log      zerolog.Logger
}

func NewMediaService(
	store *repository.Store,
	objects ObjectStorage,
	cleanup CleanupQueue,
	signer security.MediaURLSigner,
	maxBytes int64,
	log zerolog.Logger,
) *MediaService {
	return &MediaService{
		base:     newBase(store),
		objects:  objects,
		cleanup:  cleanup,
		signer:   signer,
		maxBytes: maxBytes,
		log:      log.With().Str("component", "media").Logger(),
	}
}

type UploadInput struct {
	File         io.Reader
	FileName     string
	DeclaredType string
	Title        string
	Description  string
}

// Upload stores the file under <owner>/<id><ext> and records the asset.
// The stored type comes from the content, never from the declared type.
func (s *MediaService) Upload(ctx context.Context, in UploadInput, actorID string) (models.MediaAsset, error) {
	if err := requireActor(actorID); err != nil {
		return models.MediaAsset{}, err
	}
	if in.File == nil {
		return models.MediaAsset{}, Validation("file is required")
	}
	if len(in.Title) > 255 {
		return models.MediaAsset{}, Validation("title must be at most 255 characters")
	}

	data, err := io.ReadAll(io.LimitReader(in.File, s.maxBytes+1))
	if err != nil {
		return models.MediaAsset{}, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > s.maxBytes {
		return models.MediaAsset{}, ErrUploadTooLarge
	}
	if len(data) == 0 {
		return models.MediaAsset{}, Validation("file is empty")
	}

	head := data
	if len(head) > 512 {
		head = head[:512]
	}
	result, err := sniffer.DetectHead(head)
	if err != nil {
		return models.MediaAsset{}, ErrUnsupportedMedia
	}
	if declared := strings.ToLower(strings.TrimSpace(in.DeclaredType)); declared != "" &&
		declared != "application/octet-stream" && declared != result.MIME {
		return models.MediaAsset{}, Validation("declared content type %s does not match %s", declared, result.MIME)
	}

	if result.Format == sniffer.FormatSVG {
		clean, err := svg.Sanitize(data)
		if err != nil {
			return models.MediaAsset{}, ErrUnsupportedMedia
		}
		data = clean
	}

	now := s.now()
	asset := models.MediaAsset{
		ID:            ids.New(),
		OwnerUserID:   actorID,
		MediaType:     result.Kind,
		FileName:      cleanFileName(in.FileName, result.Ext),
		FileSizeBytes: int64(len(data)),
		MimeType:      result.MIME,
		Title:         strings.TrimSpace(in.Title),
		Description:   in.Description,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	asset.StoragePath = path.Join(actorID, asset.ID+result.Ext)

	if err := s.objects.Put(ctx, asset.StoragePath, bytes.NewReader(data), asset.FileSizeBytes, asset.MimeType); err != nil {
		return models.MediaAsset{}, fmt.Errorf("store object: %w", err)
	}

	err = s.store.Transaction(ctx, func(tx *repository.Store) error {
		exists, err := tx.Users.Exists(ctx, actorID)
		if err != nil {
			return err
		}
		if !exists {
			return ErrUserNotFound
		}
		if err := tx.Media.Create(ctx, &asset); err != nil {
			return err
		}
		return s.recorder().Record(ctx, tx.Audit, audit.Event{
			Action:       audit.ActionUploadMedia,
			ActorID:      actorID,
			TargetUserID: actorID,
			Details:      asset.ID + " " + asset.MimeType,
		})
	})
	if err != nil {
		if rmErr := s.objects.Remove(ctx, asset.StoragePath); rmErr != nil {
			s.log.Warn().Err(rmErr).Str("key", asset.StoragePath).Msg("remove orphaned upload failed")
		}
		return models.MediaAsset{}, err
	}

	s.log.Info().
		Str("asset_id", asset.ID).
		Str("mime", asset.MimeType).
		Int64("size", asset.FileSizeBytes).
		Str("actor_id", actorID).
		Msg("media uploaded")
	return asset, nil
}

func cleanFileName(name, ext string) string {
	name = strings.TrimSpace(path.Base(strings.ReplaceAll(name, "\\", "/")))
	if name == "" || name == "." || name == "/" {
		name = "upload" + ext
	}
	if len(name) > 255 {
		name = name[len(name)-255:]
	}
	return name
}

func (s *MediaService) ListMine(ctx context.Context, actorID string, page repository.Page) ([]models.MediaAsset, error) {
	if err := requireActor(actorID); err != nil {
		return nil, err
	}
	return s.store.Media.ListByOwner(ctx, actorID, page)
}

type InstructorAttachment struct {
	OnSchoolhousePage bool
	OnInstructorPage  bool
	SortOrder         int
}

// AttachToInstructor links one of the actor's assets to the actor's own
// profile. Attaching twice is a successful no-op reported as false.
func (s *MediaService) AttachToInstructor(ctx context.Context, profileID, assetID, actorID string, opts InstructorAttachment) (bool, error) {
	if err := validateAttach("instructor profile id", profileID, assetID, actorID); err != nil {
		return false, err
	}

	return s.attach(ctx, func(tx *repository.Store) (bool, error) {
		profile, err := tx.Instructors.GetByID(ctx, profileID)
		if err != nil {
			return false, notFound(err, ErrProfileNotFound)
		}
		if profile.UserID != actorID {
			return false, ErrNotAuthorized
		}
		asset, err := tx.Media.GetByID(ctx, assetID)
		if err != nil {
			return false, notFound(err, ErrMediaNotFound)
		}
		if asset.OwnerUserID != actorID {
			return false, ErrNotAuthorized
		}

		exists, err := tx.Media.InstructorAttachmentExists(ctx, profileID, assetID)
		if err != nil || exists {
			return false, err
		}
		if err := tx.Media.AttachToInstructor(ctx, &models.InstructorMedia{
			ID:                              ids.New(),
			InstructorProfileID:             profileID,
			MediaAssetID:                    assetID,
			IsVisibleOnSchoolhousePage:      opts.OnSchoolhousePage,
			IsVisibleOnPublicInstructorPage: opts.OnInstructorPage,
			SortOrder:                       opts.SortOrder,
			CreatedAt:                       s.now(),
		}); err != nil {
			return false, err
		}
		return true, s.recorder().Record(ctx, tx.Audit, audit.Event{
			Action:       audit.ActionAttachMedia,
			ActorID:      actorID,
			TargetUserID: actorID,
			Details:      "instructor " + profileID + " asset " + assetID,
		})
	})
}

type SchoolhouseAttachment struct {
	VisibleOnPublicSite bool
	SortOrder           int
}

func (s *MediaService) AttachToSchoolhouse(ctx context.Context, schoolhouseID, assetID, actorID string, opts SchoolhouseAttachment) (bool, error) {
	if err := validateAttach("schoolhouse id", schoolhouseID, assetID, actorID); err != nil {
		return false, err
	}

	return s.attach(ctx, func(tx *repository.Store) (bool, error) {
		if err := authorized(policy.New(tx.Staff).CanManageMedia(ctx, schoolhouseID, actorID)); err != nil {
			return false, err
		}
		if _, err := tx.Media.GetByID(ctx, assetID); err != nil {
			return false, notFound(err, ErrMediaNotFound)
		}

		exists, err := tx.Media.SchoolhouseAttachmentExists(ctx, schoolhouseID, assetID)
		if err != nil || exists {
			return false, err
		}
		if err := tx.Media.AttachToSchoolhouse(ctx, &models.SchoolhouseMedia{
			ID:                    ids.New(),
			SchoolhouseID:         schoolhouseID,
			MediaAssetID:          assetID,
			IsVisibleOnPublicSite: opts.VisibleOnPublicSite,
			SortOrder:             opts.SortOrder,
			CreatedAt:             s.now(),
		}); err != nil {
			return false, err
		}
		return true, s.recorder().Record(ctx, tx.Audit, audit.Event{
			Action:        audit.ActionAttachMedia,
			ActorID:       actorID,
			SchoolhouseID: schoolhouseID,
			Details:       "schoolhouse asset " + assetID,
		})
	})
}

type ClassAttachment struct {
	VisibleToPublic       bool
	VisibleToEnrolledOnly bool
	SortOrder             int
}

// AttachToClass needs the class before the policy check, since the class
// decides which schoolhouse is asked.
func (s *MediaService) AttachToClass(ctx context.Context, classID, assetID, actorID string, opts ClassAttachment) (bool, error) {
	if err := validateAttach("class id", classID, assetID, actorID); err != nil {
		return false, err
	}

	return s.attach(ctx, func(tx *repository.Store) (bool, error) {
		class, err := tx.Classes.GetByID(ctx, classID)
		if err != nil {
			return false, notFound(err, ErrClassNotFound)
		}
		if err := authorized(policy.New(tx.Staff).CanManageMedia(ctx, class.SchoolhouseID, actorID)); err != nil {
			return false, err
		}
		if _, err := tx.Media.GetByID(ctx, assetID); err != nil {
			return false, notFound(err, ErrMediaNotFound)
		}

		exists, err := tx.Media.ClassAttachmentExists(ctx, classID, assetID)
		if err != nil || exists {
			return false, err
		}
		if err := tx.Media.AttachToClass(ctx, &models.ClassMedia{
			ID:                      ids.New(),
			ClassID:                 classID,
			MediaAssetID:            assetID,
			IsVisibleToPublic:       opts.VisibleToPublic,
			IsVisibleToEnrolledOnly: opts.VisibleToEnrolledOnly,
			SortOrder:               opts.SortOrder,
			CreatedAt:               s.now(),
		}); err != nil {
			return false, err
		}
		return true, s.recorder().Record(ctx, tx.Audit, audit.Event{
			Action:        audit.ActionAttachMedia,
			ActorID:       actorID,
			SchoolhouseID: class.SchoolhouseID,
			Details:       "class " + classID + " asset " + assetID,
		})
	})
}

// attach runs fn in a transaction. A unique violation from a concurrent
// attach aborts the transaction and is reported as an existing link.
func (s *MediaService) attach(ctx context.Context, fn func(tx *repository.Store) (bool, error)) (bool, error) {
	var created bool
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		var err error
		created, err = fn(tx)
		return err
	})
	if errors.Is(err, repository.ErrDuplicate) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return created, nil
}

func validateAttach(targetName, targetID, assetID, actorID string) error {
	if err := requireActor(actorID); err != nil {
		return err
	}
	if err := requireID(targetName, targetID); err != nil {
		return err
	}
	return requireID("media asset id", assetID)
}

// Delete removes the asset and its attachments. The stored object is
// removed by the worker after commit.
func (s *MediaService) Delete(ctx context.Context, assetID, actorID string) error {
	if err := requireActor(actorID); err != nil {
		return err
	}
	if err := requireID("media asset id", assetID); err != nil {
		return err
	}

	var asset models.MediaAsset
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		var err error
		asset, err = tx.Media.GetByID(ctx, assetID)
		if err != nil {
			return notFound(err, ErrMediaNotFound)
		}
		if asset.OwnerUserID != actorID {
			return ErrNotAuthorized
		}
		if err := tx.Media.Delete(ctx, assetID); err != nil {
			return notFound(err, ErrMediaNotFound)
		}
		return s.recorder().Record(ctx, tx.Audit, audit.Event{
			Action:       audit.ActionDeleteMedia,
			ActorID:      actorID,
			TargetUserID: asset.OwnerUserID,
			Details:      asset.ID + " " + asset.StoragePath,
		})
	})
	if err != nil {
		return err
	}

	s.scheduleObjectRemoval(ctx, asset)
	return nil
}

func (s *MediaService) scheduleObjectRemoval(ctx context.Context, asset models.MediaAsset) {
	logger := s.log.With().Str("asset_id", asset.ID).Str("key", asset.StoragePath).Logger()
	if s.cleanup != nil {
		_, err := s.cleanup.Enqueue(ctx, queue.DeleteObjectTask(asset.ID, asset.StoragePath, s.now()))
		if err == nil {
			return
		}
		logger.Warn().Err(err).Msg("enqueue object removal failed, removing inline")
	}
	if err := s.objects.Remove(ctx, asset.StoragePath); err != nil {
		logger.Error().Err(err).Msg("remove object failed")
	}
}

type SignedLink struct {
	AssetID   string
	Signature string
	ExpiresAt time.Time
}

func (l SignedLink) Query() string {
	return fmt.Sprintf("sig=%s&exp=%d", l.Signature, l.ExpiresAt.Unix())
}

// SignedURL issues an expiring download signature for an existing asset.
func (s *MediaService) SignedURL(ctx context.Context, assetID string) (SignedLink, error) {
	if err := requireID("media asset id", assetID); err != nil {
		return SignedLink{}, err
	}
	if _, err := s.store.Media.GetByID(ctx, assetID); err != nil {
		return SignedLink{}, notFound(err, ErrMediaNotFound)
	}
	sig, expires := s.signer.Sign(assetID)
	return SignedLink{AssetID: assetID, Signature: sig, ExpiresAt: time.Unix(expires, 0).UTC()}, nil
}

// Open verifies a download signature and returns the stored object. The
// caller closes the reader.
func (s *MediaService) Open(ctx context.Context, assetID, signature string, expires int64) (models.MediaAsset, io.ReadCloser, error) {
	if err := s.signer.Verify(assetID, signature, expires); err != nil {
		return models.MediaAsset{}, nil, ErrInvalidMediaSignature
	}
	if !ids.Valid(assetID) {
		return models.MediaAsset{}, nil, ErrMediaNotFound
	}
	asset, err := s.store.Media.GetByID(ctx, assetID)
	if err != nil {
		return models.MediaAsset{}, nil, notFound(err, ErrMediaNotFound)
	}
	body, _, err := s.objects.Open(ctx, asset.StoragePath)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return models.MediaAsset{}, nil, ErrMediaNotFound
		}
		return models.MediaAsset{}, nil, err
	}
	return asset, body, nil
}
