package views

import "github.com/dpotapov/toolsite/pages"

// Routes returns the route table of the site. "/" and "/homepage" are aliases of the same view.
func Routes() (*pages.Table, error) {
	return pages.NewTable(
		pages.RouteEntry{Pattern: "/", Name: HomeName, View: Home()},
		pages.RouteEntry{Pattern: "/homepage", Name: HomeName, View: Home()},
		pages.RouteEntry{Pattern: "/tool-detail-page", Name: ToolDetailName, View: ToolDetail()},
		pages.RouteEntry{Pattern: "/tool-comparison-page", Name: ToolComparisonName, View: ToolComparison()},
		pages.RouteEntry{Pattern: "/category-listing-page", Name: CategoryListingName, View: CategoryListing()},
		pages.RouteEntry{Pattern: "/admin-dashboard", Name: AdminDashboardName, View: AdminDashboard()},
		pages.RouteEntry{Pattern: "/tool-submission-form", Name: ToolSubmissionFormName, View: ToolSubmissionForm()},
		pages.RouteEntry{Pattern: "/favorites", Name: UserFavoritesName, View: UserFavorites()},
		pages.RouteEntry{Pattern: "/trending-tools-page", Name: TrendingToolsName, View: TrendingTools()},
		pages.RouteEntry{Pattern: "/just-launched-page", Name: JustLaunchedName, View: JustLaunched()},
		pages.RouteEntry{Pattern: "/deals-page", Name: DealsName, View: Deals()},
		pages.RouteEntry{Pattern: "/tool-directory-page", Name: ToolDirectoryName, View: ToolDirectory()},
		pages.RouteEntry{Pattern: "/request-feature-page", Name: RequestFeatureName, View: RequestFeature()},
		pages.RouteEntry{Pattern: pages.CatchAll, Name: NotFoundName, View: NotFound()},
	)
}
