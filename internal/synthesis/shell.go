// File path: internal/synthesis/shell.go
package synthesis

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ArticleID is the element id of the draft article inside the shell.
const ArticleID = "draft-article"

const shellScript = `<script>
document.addEventListener('mouseover', function(e){
  const el = e.target.closest('[data-req-id]');
  if(!el) return;
  el.style.outline = '2px solid #6366f1';
});
document.addEventListener('mouseout', function(e){
  const el = e.target.closest('[data-req-id]');
  if(!el) return;
  el.style.outline = '';
});
window.highlightRequirement = function(reqId){
  document.querySelectorAll('#draft-article [data-req-id]').forEach(function(n){ n.style.outline=''; });
  var selector = '#draft-article [data-req-id="' + reqId + '"]';
  var target = document.querySelector(selector);
  if(target){
    target.scrollIntoView({behavior: 'smooth', block: 'start'});
    target.style.outline = '3px solid #22c55e';
    setTimeout(function(){ target.style.outline=''; }, 1500);
  }
};
window.highlightFromChecklist = function(el){
  var reqId = el.getAttribute('data-req-id');
  window.highlightRequirement && window.highlightRequirement(reqId);
};
</script>`

// Wrap places a cleaned draft body inside the scrollable article and attaches
// the hover and highlight behaviours used by the checklist panel.
func Wrap(body string) string {
	var b strings.Builder
	b.WriteString("<div class='prose prose-invert max-w-none'>")
	b.WriteString("  <article id='" + ArticleID + "' style=\"font-family: 'Georgia', serif; line-height: 1.6;\">")
	b.WriteString("    " + body)
	b.WriteString("  </article>")
	b.WriteString("</div>")
	b.WriteString(shellScript)
	return b.String()
}

// LinkedRequirements lists the distinct data-req-id values inside the draft
// article, in document order. It reports what the model produced and is not
// used to validate or reject a draft.
func LinkedRequirements(html string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}
	scope := doc.Find("#" + ArticleID)
	if scope.Length() == 0 {
		scope = doc.Selection
	}
	seen := make(map[string]struct{})
	var ids []string
	scope.Find("[data-req-id]").Each(func(_ int, sel *goquery.Selection) {
		id := strings.TrimSpace(sel.AttrOr("data-req-id", ""))
		if id == "" {
			return
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	})
	return ids
}
