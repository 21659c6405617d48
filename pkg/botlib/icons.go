package botlib

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/aeolun/ymsg/pkg/client"
)

const (
	// Icons larger than this are not buddy icons
	maxIconSize = 256 * 1024
	// How long the server keeps an uploaded picture
	pictureLifetime = 14 * 24 * time.Hour
	// Icons not refreshed for this long are dropped at startup
	iconRetention = 90 * 24 * time.Hour
)

// iconFetcher downloads buddy icons into the state directory and records
// their checksums in the store. A fetch for the same buddy and checksum
// is only started once per TTL, and each icon host is rate limited.
type iconFetcher struct {
	store  client.StoreInterface
	http   *http.Client
	logger *log.Logger

	inflight *cache.Cache // "handle/checksum" -> struct{}
	limiters *cache.Cache // icon host -> *rate.Limiter
	rate     rate.Limit
	burst    int

	ctx context.Context
	wg  sync.WaitGroup
}

func newIconFetcher(store client.StoreInterface, httpClient *http.Client, ttl time.Duration, logger *log.Logger) *iconFetcher {
	return &iconFetcher{
		store:    store,
		http:     httpClient,
		logger:   logger,
		inflight: cache.New(ttl, 2*ttl),
		limiters: cache.New(ttl, 2*ttl),
		rate:     rate.Every(time.Second),
		burst:    5,
		ctx:      context.Background(),
	}
}

func (f *iconFetcher) logf(format string, args ...interface{}) {
	if f.logger != nil {
		f.logger.Printf(format, args...)
	}
}

// allow checks the rate limit for the host serving rawURL.
func (f *iconFetcher) allow(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return false
	}
	limiter, found := f.limiters.Get(u.Host)
	if !found {
		limiter = rate.NewLimiter(f.rate, f.burst)
		f.limiters.Set(u.Host, limiter, cache.DefaultExpiration)
	}
	return limiter.(*rate.Limiter).Allow()
}

// fetch starts a download unless one for the same icon is already
// running or finished recently.
func (f *iconFetcher) fetch(who, iconURL string, checksum int32) bool {
	key := client.Normalize(who) + "/" + strconv.FormatInt(int64(checksum), 10)
	if err := f.inflight.Add(key, struct{}{}, cache.DefaultExpiration); err != nil {
		return false
	}
	if !f.allow(iconURL) {
		f.logf("Icon fetch for %s rate limited", who)
		f.inflight.Delete(key)
		return false
	}

	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		if err := f.download(who, iconURL, checksum); err != nil {
			f.logf("Failed to fetch icon for %s: %v", who, err)
			f.inflight.Delete(key)
		}
	}()
	return true
}

func (f *iconFetcher) download(who, iconURL string, checksum int32) error {
	ctx, cancel := context.WithTimeout(f.ctx, 30*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, iconURL, nil)
	if err != nil {
		return err
	}
	resp, err := f.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxIconSize+1))
	if err != nil {
		return err
	}
	if len(data) > maxIconSize {
		return fmt.Errorf("icon larger than %d bytes", maxIconSize)
	}

	if err := os.MkdirAll(f.dir(), 0755); err != nil {
		return fmt.Errorf("failed to create icon directory: %w", err)
	}
	if err := os.WriteFile(f.path(who), data, 0644); err != nil {
		return fmt.Errorf("failed to write icon: %w", err)
	}

	if err := f.store.SaveBuddyIcon(client.BuddyIconRecord{
		Handle:   who,
		Checksum: checksum,
		URL:      iconURL,
		Updated:  time.Now(),
	}); err != nil {
		return fmt.Errorf("failed to save icon checksum: %w", err)
	}
	f.logf("Fetched icon for %s (%d bytes, checksum %d)", who, len(data), checksum)
	return nil
}

func (f *iconFetcher) dir() string {
	return filepath.Join(f.store.GetStateDir(), "icons")
}

// path is where who's icon is written
func (f *iconFetcher) path(who string) string {
	return filepath.Join(f.dir(), url.PathEscape(client.Normalize(who)))
}

func (f *iconFetcher) forget(who string) {
	if err := f.store.ForgetBuddyIcon(who); err != nil {
		f.logf("Failed to forget icon for %s: %v", who, err)
	}
	if err := os.Remove(f.path(who)); err != nil && !os.IsNotExist(err) {
		f.logf("Failed to remove icon for %s: %v", who, err)
	}
}

// prune drops icons not refreshed since before, files included.
func (f *iconFetcher) prune(before time.Time) {
	icons, err := f.store.BuddyIcons()
	if err != nil {
		f.logf("Failed to list icons: %v", err)
		return
	}
	for _, rec := range icons {
		if !rec.Updated.Before(before) {
			continue
		}
		if err := os.Remove(f.path(rec.Handle)); err != nil && !os.IsNotExist(err) {
			f.logf("Failed to remove icon for %s: %v", rec.Handle, err)
		}
	}
	n, err := f.store.PruneBuddyIcons(before)
	if err != nil {
		f.logf("Failed to prune icons: %v", err)
		return
	}
	if n > 0 {
		f.logf("Pruned %d stale icons", n)
	}
}

func (f *iconFetcher) wait() {
	f.wg.Wait()
}

// Icons

// FetchIcon downloads who's icon in the background.
func (b *Bot) FetchIcon(who, iconURL string, checksum int32) {
	if b.icons.fetch(who, iconURL, checksum) {
		b.emit(Event{Kind: EventIcon, Who: who, Text: iconURL})
	}
}

// ClearIcon is called when a buddy drops their icon.
func (b *Bot) ClearIcon(who string) {
	b.icons.forget(who)
}

// ForgetIcon is called when a buddy leaves the list.
func (b *Bot) ForgetIcon(who string) {
	b.icons.forget(who)
}

// IconChecksum returns the checksum of the icon stored for who.
func (b *Bot) IconChecksum(who string) (int32, bool) {
	rec, ok, err := b.store.GetBuddyIcon(who)
	if err != nil {
		b.logf("Failed to read icon checksum for %s: %v", who, err)
		return 0, false
	}
	return rec.Checksum, ok
}

// IconPath returns the file who's icon was downloaded to, if any.
func (b *Bot) IconPath(who string) (string, bool) {
	if _, ok := b.IconChecksum(who); !ok {
		return "", false
	}
	path := b.icons.path(who)
	if _, err := os.Stat(path); err != nil {
		return "", false
	}
	return path, true
}

// UploadIcon is not supported; the bot keeps the picture_url it was
// configured with.
func (b *Bot) UploadIcon(data []byte) {
	b.logf("Icon upload of %d bytes skipped, set [account] picture_url instead", len(data))
}

// StorePicture remembers our picture so the next login does not upload
// it again.
func (b *Bot) StorePicture(pictureURL string, checksum int32) {
	rec := client.PictureRecord{URL: pictureURL, Checksum: checksum}
	if pictureURL != "" {
		rec.Expires = b.now().Add(pictureLifetime)
	}
	if err := b.store.SetPicture(rec); err != nil {
		b.logf("Failed to store picture: %v", err)
	}
}
