package image

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agrosight/ndvi-vault/internal/apperr"
	"github.com/agrosight/ndvi-vault/internal/events"
	"github.com/agrosight/ndvi-vault/internal/model"
	"github.com/agrosight/ndvi-vault/internal/processor"
	accountrepo "github.com/agrosight/ndvi-vault/internal/repository/account"
	imagerepo "github.com/agrosight/ndvi-vault/internal/repository/image"
)

// ---------------------------------------------------------------------------
// Fakes
// ---------------------------------------------------------------------------

type fakeStore struct {
	puts    map[string][]byte // key -> stored bytes
	putErr  map[string]error  // key prefix -> error to return
	deleted []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{puts: map[string][]byte{}, putErr: map[string]error{}}
}

func (f *fakeStore) Put(_ context.Context, key, _ string, src io.Reader, _ int64) (string, error) {
	for prefix, err := range f.putErr {
		if strings.HasPrefix(key, prefix) {
			return "", err
		}
	}
	data, _ := io.ReadAll(src)
	f.puts[key] = data
	return "https://store.test/bucket/" + key, nil
}

func (f *fakeStore) SignedURL(_ context.Context, rawURL string, ttl time.Duration) (string, error) {
	return rawURL + "?sig=abc&ttl=" + ttl.String(), nil
}

func (f *fakeStore) Delete(_ context.Context, rawURL string) error {
	f.deleted = append(f.deleted, rawURL)
	return nil
}

type fakeTransform struct {
	calls  int
	result processor.Result
}

func (f *fakeTransform) Process(_ []byte) processor.Result {
	f.calls++
	return f.result
}

type fakeImageRepo struct {
	saved   []model.Image
	images  map[uuid.UUID]model.Image
	deleted []uuid.UUID
	saveErr error
}

func newFakeImageRepo() *fakeImageRepo {
	return &fakeImageRepo{images: map[uuid.UUID]model.Image{}}
}

func (f *fakeImageRepo) SaveImage(_ context.Context, img model.Image) (model.Image, error) {
	if f.saveErr != nil {
		return model.Image{}, f.saveErr
	}
	img.ID = uuid.New()
	img.CreatedAt = time.Now()
	f.saved = append(f.saved, img)
	f.images[img.ID] = img
	return img, nil
}

func (f *fakeImageRepo) GetImage(_ context.Context, id uuid.UUID) (model.Image, error) {
	img, ok := f.images[id]
	if !ok {
		return model.Image{}, imagerepo.ErrImageNotFound
	}
	return img, nil
}

func (f *fakeImageRepo) ListImagesByAccount(_ context.Context, accountID uuid.UUID) ([]model.Image, error) {
	var out []model.Image
	for _, img := range f.images {
		if img.AccountID == accountID {
			out = append(out, img)
		}
	}
	return out, nil
}

func (f *fakeImageRepo) DeleteImage(_ context.Context, id uuid.UUID) error {
	if _, ok := f.images[id]; !ok {
		return imagerepo.ErrImageNotFound
	}
	delete(f.images, id)
	f.deleted = append(f.deleted, id)
	return nil
}

type fakeAccountRepo struct {
	accounts map[uuid.UUID]model.Account
}

func newFakeAccountRepo(accs ...model.Account) *fakeAccountRepo {
	f := &fakeAccountRepo{accounts: map[uuid.UUID]model.Account{}}
	for _, a := range accs {
		f.accounts[a.ID] = a
	}
	return f
}

func (f *fakeAccountRepo) GetAccountByID(_ context.Context, id uuid.UUID) (model.Account, error) {
	acc, ok := f.accounts[id]
	if !ok {
		return model.Account{}, accountrepo.ErrAccountNotFound
	}
	return acc, nil
}

func (f *fakeAccountRepo) GetAccountByEmail(_ context.Context, email string) (model.Account, error) {
	for _, acc := range f.accounts {
		if acc.Email == email {
			return acc, nil
		}
	}
	return model.Account{}, accountrepo.ErrAccountNotFound
}

type fakePublisher struct {
	published []events.Event
	err       error
}

func (f *fakePublisher) Publish(_ context.Context, ev events.Event) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, ev)
	return nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

type fixture struct {
	svc       *Service
	store     *fakeStore
	transform *fakeTransform
	images    *fakeImageRepo
	accounts  *fakeAccountRepo
	publisher *fakePublisher
	client    model.Account
}

func newFixture(t *testing.T, res processor.Result) *fixture {
	t.Helper()

	client := model.Account{ID: uuid.New(), Email: "client@farm.test", Role: model.RoleClient}

	f := &fixture{
		store:     newFakeStore(),
		transform: &fakeTransform{result: res},
		images:    newFakeImageRepo(),
		accounts:  newFakeAccountRepo(client),
		publisher: &fakePublisher{},
		client:    client,
	}
	f.svc = NewService(f.store, f.transform, f.images, f.accounts, f.publisher, 10<<20, time.Hour)

	return f
}

func decodedResult() processor.Result {
	return processor.Result{
		Thumbnail: []byte("thumb-bytes"),
		Optimized: nil,
		Meta:      &processor.Meta{Width: 800, Height: 600, Format: "png", ColorModel: "rgb"},
	}
}

// ---------------------------------------------------------------------------
// Ingest
// ---------------------------------------------------------------------------

func TestIngest_AcceptedTypes(t *testing.T) {
	for _, declared := range []string{"image/tiff", "image/png", "image/jpeg", "image/jpg"} {
		t.Run(declared, func(t *testing.T) {
			f := newFixture(t, decodedResult())

			_, err := f.svc.Ingest(context.Background(), IngestInput{
				Data:         []byte("data"),
				Filename:     "field.bin",
				DeclaredType: declared,
				AccountID:    f.client.ID,
			})

			require.NoError(t, err)
			require.Len(t, f.images.saved, 1)
		})
	}
}

func TestIngest_DeclaredTypeWithParameters(t *testing.T) {
	for _, declared := range []string{"image/png; charset=binary", "IMAGE/JPEG; q=0.9"} {
		t.Run(declared, func(t *testing.T) {
			f := newFixture(t, decodedResult())

			_, err := f.svc.Ingest(context.Background(), IngestInput{
				Data:         []byte("data"),
				Filename:     "field.bin",
				DeclaredType: declared,
				AccountID:    f.client.ID,
			})

			require.NoError(t, err)
			require.Len(t, f.images.saved, 1)
		})
	}
}

func TestIngest_AcceptedExtensions(t *testing.T) {
	for _, name := range []string{"a.tiff", "a.tif", "a.png", "a.jpg", "a.JPEG"} {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t, decodedResult())

			_, err := f.svc.Ingest(context.Background(), IngestInput{
				Data:      []byte("data"),
				Filename:  name,
				AccountID: f.client.ID,
			})

			require.NoError(t, err)
		})
	}
}

func TestIngest_RejectsDisallowedType(t *testing.T) {
	f := newFixture(t, decodedResult())

	_, err := f.svc.Ingest(context.Background(), IngestInput{
		Data:         []byte("%PDF-1.4"),
		Filename:     "report.pdf",
		DeclaredType: "application/pdf",
		AccountID:    f.client.ID,
	})

	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
	assert.Contains(t, err.Error(), "Invalid file type")
	assert.Empty(t, f.images.saved, "no metadata row for rejected upload")
	assert.Empty(t, f.store.puts, "nothing stored for rejected upload")
}

func TestIngest_RejectsEmptyBuffer(t *testing.T) {
	f := newFixture(t, decodedResult())

	_, err := f.svc.Ingest(context.Background(), IngestInput{
		Filename:     "empty.png",
		DeclaredType: "image/png",
		AccountID:    f.client.ID,
	})

	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}

func TestIngest_RejectsOversizeBeforeTransformAndStore(t *testing.T) {
	f := newFixture(t, decodedResult())
	big := make([]byte, 11<<20) // over the 10 MiB fixture ceiling

	_, err := f.svc.Ingest(context.Background(), IngestInput{
		Data:         big,
		Filename:     "huge.png",
		DeclaredType: "image/png",
		AccountID:    f.client.ID,
	})

	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindTooLarge))
	assert.Zero(t, f.transform.calls, "transform must not run for oversize uploads")
	assert.Empty(t, f.store.puts, "store must not be touched for oversize uploads")
}

func TestIngest_UnknownAccount(t *testing.T) {
	f := newFixture(t, decodedResult())

	_, err := f.svc.Ingest(context.Background(), IngestInput{
		Data:         []byte("data"),
		Filename:     "field.png",
		DeclaredType: "image/png",
		AccountID:    uuid.New(),
	})

	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
}

func TestIngest_AdminTargetRejected(t *testing.T) {
	admin := model.Account{ID: uuid.New(), Email: "admin@farm.test", Role: model.RoleAdmin}
	f := newFixture(t, decodedResult())
	f.accounts.accounts[admin.ID] = admin

	_, err := f.svc.Ingest(context.Background(), IngestInput{
		Data:         []byte("data"),
		Filename:     "field.png",
		DeclaredType: "image/png",
		AccountID:    admin.ID,
	})

	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindAuthorization))
}

func TestIngest_Success(t *testing.T) {
	res := decodedResult()
	res.Optimized = []byte("optimized-bytes")
	f := newFixture(t, res)

	img, err := f.svc.Ingest(context.Background(), IngestInput{
		Data:         []byte("png-bytes"),
		Filename:     "field1.png",
		DeclaredType: "image/png",
		AccountID:    f.client.ID,
	})

	require.NoError(t, err)
	assert.Equal(t, f.client.ID, img.AccountID)
	assert.Equal(t, model.StatusCompleted, img.ProcessingStatus)
	assert.Equal(t, 800, img.Width)
	assert.Equal(t, 600, img.Height)
	assert.Equal(t, "800x600", img.Dimensions())
	assert.Equal(t, "field1.png", img.OriginalFilename)

	// Stored under a generated key, never the raw filename.
	assert.NotContains(t, img.URL, "field1.png")
	assert.Contains(t, img.URL, "original/"+f.client.ID.String()+"/")

	require.NotNil(t, img.ThumbnailURL)
	assert.Contains(t, *img.ThumbnailURL, "thumbnail/")
	require.NotNil(t, img.OptimizedURL)
	assert.Contains(t, *img.OptimizedURL, "optimized/")

	require.Len(t, f.publisher.published, 1)
	assert.Equal(t, events.TypeImageIngested, f.publisher.published[0].Type)
}

func TestIngest_NoOptimizedUnderCap(t *testing.T) {
	f := newFixture(t, decodedResult()) // result has no optimized bytes

	img, err := f.svc.Ingest(context.Background(), IngestInput{
		Data:         []byte("png-bytes"),
		Filename:     "small.png",
		DeclaredType: "image/png",
		AccountID:    f.client.ID,
	})

	require.NoError(t, err)
	assert.Nil(t, img.OptimizedURL)
	require.NotNil(t, img.ThumbnailURL)
}

func TestIngest_DecodeFailureStillStoresOriginal(t *testing.T) {
	f := newFixture(t, processor.Result{}) // transform produced nothing

	img, err := f.svc.Ingest(context.Background(), IngestInput{
		Data:         []byte("corrupted"),
		Filename:     "broken.png",
		DeclaredType: "image/png",
		AccountID:    f.client.ID,
	})

	require.NoError(t, err, "decode failure must not abort the upload")
	assert.NotEmpty(t, img.URL)
	assert.Nil(t, img.ThumbnailURL)
	assert.Nil(t, img.OptimizedURL)
	assert.Equal(t, model.StatusFailed, img.ProcessingStatus)
	require.Len(t, f.images.saved, 1)
}

func TestIngest_OriginalStoreFailureAborts(t *testing.T) {
	f := newFixture(t, decodedResult())
	f.store.putErr["original/"] = apperr.Storage("put failed", errors.New("boom"))

	_, err := f.svc.Ingest(context.Background(), IngestInput{
		Data:         []byte("data"),
		Filename:     "field.png",
		DeclaredType: "image/png",
		AccountID:    f.client.ID,
	})

	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindStorage))
	assert.Empty(t, f.images.saved, "no metadata row when the original fails to store")
}

func TestIngest_ThumbnailStoreFailureIsNonFatal(t *testing.T) {
	f := newFixture(t, decodedResult())
	f.store.putErr["thumbnail/"] = apperr.Storage("put failed", errors.New("boom"))

	img, err := f.svc.Ingest(context.Background(), IngestInput{
		Data:         []byte("data"),
		Filename:     "field.png",
		DeclaredType: "image/png",
		AccountID:    f.client.ID,
	})

	require.NoError(t, err)
	assert.Nil(t, img.ThumbnailURL)
	assert.NotEmpty(t, img.URL)
}

func TestIngest_PublisherFailureIsNonFatal(t *testing.T) {
	f := newFixture(t, decodedResult())
	f.publisher.err = errors.New("broker down")

	_, err := f.svc.Ingest(context.Background(), IngestInput{
		Data:         []byte("data"),
		Filename:     "field.png",
		DeclaredType: "image/png",
		AccountID:    f.client.ID,
	})

	require.NoError(t, err)
}

func TestIngest_ResolvesOwnerByEmail(t *testing.T) {
	f := newFixture(t, decodedResult())

	img, err := f.svc.Ingest(context.Background(), IngestInput{
		Data:         []byte("data"),
		Filename:     "field.png",
		DeclaredType: "image/png",
		AccountEmail: f.client.Email,
	})

	require.NoError(t, err)
	assert.Equal(t, f.client.ID, img.AccountID)
}

// ---------------------------------------------------------------------------
// Delete / SignedURL
// ---------------------------------------------------------------------------

func TestDelete_RemovesRowAndObjects(t *testing.T) {
	res := decodedResult()
	res.Optimized = []byte("optimized-bytes")
	f := newFixture(t, res)

	img, err := f.svc.Ingest(context.Background(), IngestInput{
		Data:         []byte("data"),
		Filename:     "field.png",
		DeclaredType: "image/png",
		AccountID:    f.client.ID,
	})
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(context.Background(), img.ID))

	assert.Contains(t, f.images.deleted, img.ID)
	assert.Len(t, f.store.deleted, 3, "original, thumbnail and optimized objects removed")

	_, err = f.svc.Get(context.Background(), img.ID)
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
}

func TestDelete_UnknownImage(t *testing.T) {
	f := newFixture(t, decodedResult())

	err := f.svc.Delete(context.Background(), uuid.New())

	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
}

func TestSignedURL(t *testing.T) {
	f := newFixture(t, decodedResult())

	t.Run("explicit ttl", func(t *testing.T) {
		signed, ttl, err := f.svc.SignedURL(context.Background(), "https://store.test/bucket/original/x", 5*time.Minute)
		require.NoError(t, err)
		assert.Equal(t, 5*time.Minute, ttl)
		assert.Contains(t, signed, "sig=")
	})

	t.Run("default ttl", func(t *testing.T) {
		_, ttl, err := f.svc.SignedURL(context.Background(), "https://store.test/bucket/original/x", 0)
		require.NoError(t, err)
		assert.Equal(t, time.Hour, ttl)
	})

	t.Run("missing url", func(t *testing.T) {
		_, _, err := f.svc.SignedURL(context.Background(), "", 0)
		require.Error(t, err)
		assert.True(t, apperr.IsKind(err, apperr.KindValidation))
	})
}
