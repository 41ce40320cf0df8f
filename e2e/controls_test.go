//go:build e2e

package e2e

import (
	"testing"

	"github.com/playwright-community/playwright-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitForFilterLabel(t *testing.T, page playwright.Page, label string) {
	t.Helper()
	err := page.Locator("#filter-button:has-text('" + label + "')").WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: playwright.Float(5000),
	})
	require.NoError(t, err)
}

func TestControls_FilterCycles(t *testing.T) {
	page := newPage(t)
	navigateToDashboard(t, page)

	waitForFilterLabel(t, page, "filter: all")

	require.NoError(t, page.Locator("#filter-button").Click())
	waitForFilterLabel(t, page, "filter: active")

	// in active mode no archived row is shown
	count, err := page.Locator(".module-archived").Count()
	require.NoError(t, err)
	assert.Zero(t, count, "archived rows hidden in active mode")

	require.NoError(t, page.Locator("#filter-button").Click())
	waitForFilterLabel(t, page, "filter: archived")

	require.NoError(t, page.Locator("#filter-button").Click())
	waitForFilterLabel(t, page, "filter: all")
}

func TestControls_FilterSurvivesReload(t *testing.T) {
	page := newPage(t)
	navigateToDashboard(t, page)

	require.NoError(t, page.Locator("#filter-button").Click())
	waitForFilterLabel(t, page, "filter: active")

	_, err := page.Reload()
	require.NoError(t, err)
	waitForFilterLabel(t, page, "filter: active")
}

func TestControls_PageSizeSelect(t *testing.T) {
	page := newPage(t)
	navigateToDashboard(t, page)

	_, err := page.Locator(".page-size-select").SelectOption(playwright.SelectOptionValues{Values: &[]string{"all"}})
	require.NoError(t, err)

	err = page.Locator("#pager:has-text('page 1 of 1')").WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: playwright.Float(5000),
	})
	assert.NoError(t, err, "unbounded size collapses to a single page")

	_, err = page.Locator(".page-size-select").SelectOption(playwright.SelectOptionValues{Values: &[]string{"25"}})
	require.NoError(t, err)
}

func TestControls_PagerButtonsDisabledOnSinglePage(t *testing.T) {
	page := newPage(t)
	navigateToDashboard(t, page)

	waitVisible(t, page.Locator("#pager"))

	// the seed fits one page, both directions are disabled
	prevDisabled, err := page.Locator(".pager-prev").IsDisabled()
	require.NoError(t, err)
	nextDisabled, err := page.Locator(".pager-next").IsDisabled()
	require.NoError(t, err)
	assert.True(t, prevDisabled)
	assert.True(t, nextDisabled)
}

func TestControls_ThemeToggle(t *testing.T) {
	page := newPage(t)
	navigateToDashboard(t, page)

	before, err := page.Locator("html").GetAttribute("data-theme")
	require.NoError(t, err)

	require.NoError(t, page.Locator("button[title='Toggle theme']").Click())

	// theme toggle triggers a full refresh with the other theme
	want := "light"
	if before == "light" {
		want = "dark"
	}
	err = page.Locator("html[data-theme='" + want + "']").WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateAttached,
		Timeout: playwright.Float(5000),
	})
	assert.NoError(t, err)
}
