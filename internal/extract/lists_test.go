package extract

import (
	"testing"
)

const followsHTML = `
<html><body>
<div class="fiction-list-item">
  <figure><img src="https://cdn.example.com/c1.jpg"></figure>
  <h2 class="fiction-title"><a href="/fiction/11/alpha">Alpha</a></h2>
  <span class="label-new">NEW</span>
  <ul>
    <li>Latest: <a href="/fiction/11/alpha/chapter/210/latest">Ch 21</a></li>
    <li>Last Read: <a href="/fiction/11/alpha/chapter/180/read">Ch 18</a></li>
  </ul>
  <a href="/follows/read/11">Continue</a>
</div>
<div class="fiction-list-item">
  <h2 class="fiction-title"><a href="/fiction/22/beta">Beta</a></h2>
  <ul>
    <li>Latest: <a href="/fiction/22/beta/chapter/310/l">Ch 31</a></li>
    <li>Last Read: <a href="/fiction/22/beta/chapter/310/l">Ch 31</a></li>
  </ul>
</div>
<div class="fiction-list-item">
  <h2 class="fiction-title"><a href="/not-a-fiction">Broken</a></h2>
</div>
</body></html>`

func TestFollows(t *testing.T) {
	follows, err := Follows(followsHTML)
	if err != nil {
		t.Fatalf("Follows failed: %v", err)
	}
	if len(follows) != 2 {
		t.Fatalf("Expected 2 parsed follows (broken item skipped), got %d", len(follows))
	}

	alpha := follows[0]
	if alpha.ID != 11 || alpha.Title != "Alpha" {
		t.Errorf("Unexpected first follow: %+v", alpha.Fiction)
	}
	if !alpha.Unread {
		t.Error("Expected Alpha to be flagged unread")
	}
	if alpha.LatestRef == nil || alpha.LatestRef.ID != 210 {
		t.Errorf("Unexpected latest ref: %+v", alpha.LatestRef)
	}
	if alpha.LastReadRef == nil || alpha.LastReadRef.ID != 180 {
		t.Errorf("Unexpected last-read ref: %+v", alpha.LastReadRef)
	}
	if alpha.ContinueURL != "/follows/read/11" {
		t.Errorf("Unexpected continue URL: %q", alpha.ContinueURL)
	}

	beta := follows[1]
	if beta.Unread {
		t.Error("Beta is caught up and must not be flagged unread")
	}
}

func TestFollowsTotallyUnparseable(t *testing.T) {
	follows, err := Follows("<html><body><p>maintenance page</p></body></html>")
	if err != nil {
		t.Fatalf("Follows must not error on unparseable markup: %v", err)
	}
	if follows == nil || len(follows) != 0 {
		t.Errorf("Expected empty non-nil slice, got %#v", follows)
	}
}

func TestHistory(t *testing.T) {
	html := `
<html><body>
<div class="fiction-list-item">
  <h2 class="fiction-title"><a href="/fiction/11/alpha">Alpha</a></h2>
  <a href="/fiction/11/alpha/chapter/210/ch">Chapter 21</a>
  <time>2 days ago</time>
</div>
</body></html>`
	entries, err := History(html)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("Expected 1 history entry, got %d", len(entries))
	}
	e := entries[0]
	if e.FictionID != 11 || e.ChapterID != 210 {
		t.Errorf("Unexpected ids: %+v", e)
	}
	if e.VisitedAt != "2 days ago" {
		t.Errorf("Expected human-readable timestamp passthrough, got %q", e.VisitedAt)
	}
}

func TestSearch(t *testing.T) {
	html := `
<html><body>
<div class="fiction-list-item">
  <figure><img src="https://cdn.example.com/c.jpg"></figure>
  <h2 class="fiction-title"><a href="/fiction/33/gamma">Gamma</a></h2>
  <span>1,200 Pages</span>
  <span class="star" aria-label="4.2 stars"></span>
</div>
<div class="fiction-list-item"><h2>garbage item</h2></div>
</body></html>`
	results, err := Search(html)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("Expected 1 result with the garbage item skipped, got %d", len(results))
	}
	r := results[0]
	if r.FictionID != 33 || r.Title != "Gamma" {
		t.Errorf("Unexpected result: %+v", r)
	}
	if r.Pages != 1200 {
		t.Errorf("Expected 1200 pages, got %d", r.Pages)
	}
	if r.Rating != 4.2 {
		t.Errorf("Expected rating 4.2, got %v", r.Rating)
	}
}

func TestToplist(t *testing.T) {
	html := `
<html><body>
<div class="fiction-list-item">
  <h2 class="fiction-title"><a href="/fiction/44/delta">Delta</a></h2>
  <span>9,001 Followers</span>
  <span class="star" data-content="4.8 stars"></span>
  <span class="tags"><a>LitRPG</a><a>Portal</a><a>Kingdom</a><a>Extra</a></span>
</div>
</body></html>`
	fictions, err := Toplist(html)
	if err != nil {
		t.Fatalf("Toplist failed: %v", err)
	}
	if len(fictions) != 1 {
		t.Fatalf("Expected 1 fiction, got %d", len(fictions))
	}
	f := fictions[0]
	if f.ID != 44 || f.Stats.Followers != 9001 || f.Stats.Rating != 4.8 {
		t.Errorf("Unexpected toplist entry: %+v", f)
	}
	if len(f.Tags) != 3 {
		t.Errorf("Expected tag cap of 3, got %v", f.Tags)
	}
}

func TestCSRFToken(t *testing.T) {
	html := `<form><input name="__RequestVerificationToken" type="hidden" value="tok123"></form>`
	if got := CSRFToken(html); got != "tok123" {
		t.Errorf("CSRFToken = %q, want tok123", got)
	}
	if got := CSRFToken("<html></html>"); got != "" {
		t.Errorf("Expected empty token, got %q", got)
	}
}
