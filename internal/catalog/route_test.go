package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseRoute(t *testing.T) {
	tests := []struct {
		name     string
		prefix   string
		uri      string
		route    string
		action   string
		expected Route
	}{
		{
			name:   "namespaced controller with version segment",
			uri:    "/v1/admin/users/{id}",
			route:  "admin.users.show",
			action: `Admin\UserController@show`,
			expected: Route{
				Version:    "v1",
				Module:     "Admin",
				Controller: "User",
				SDKName:    "Admin.Users.UsersShowApi",
			},
		},
		{
			name:   "version taken from prefix",
			prefix: "/api/v2/",
			uri:    "/api/v2/orders/{id}",
			action: "OrderController@show",
			expected: Route{
				Prefix:     "api/v2",
				Version:    "v2",
				Module:     DefaultModule,
				Controller: "Order",
				SDKName:    "Order.OrderShowApi",
			},
		},
		{
			name:   "module from first uri segment",
			uri:    "/shop/products",
			action: "ProductController@index",
			expected: Route{
				Module:     "shop",
				Controller: "Product",
				SDKName:    "Shop.Product.ProductIndexApi",
			},
		},
		{
			name:   "framework namespace is dropped",
			uri:    "/users",
			action: `App\Http\Controllers\UserController@index`,
			expected: Route{
				Module:     DefaultModule,
				Controller: "User",
				SDKName:    "User.UserIndexApi",
			},
		},
		{
			name:   "segment resembling a version",
			uri:    "/v1beta/items",
			action: "ItemController@index",
			expected: Route{
				Module:     "v1beta",
				Controller: "Item",
				SDKName:    "V1beta.Item.ItemIndexApi",
			},
		},
		{
			name:   "closure route",
			uri:    "/v1",
			expected: Route{
				Version: "v1",
				Module:  DefaultModule,
			},
		},
		{
			name:   "controller from uri without action",
			uri:    "/reports/daily",
			action: "",
			expected: Route{
				Module:     "reports",
				Controller: "daily",
				SDKName:    "Reports.ReportsDailyApi",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseRoute(tt.prefix, tt.uri, tt.route, tt.action))
		})
	}
}

func TestSDKName(t *testing.T) {
	assert.Equal(t, "Admin.Users.UsersIndexApi", SDKName("admin.users.index"))
	assert.Equal(t, "IndexApi", SDKName("index"))
	assert.Equal(t, "UserPosts.UserPostsListAllApi", SDKName("user_posts.list-all"))
	assert.Equal(t, "Users.UsersShowApi", SDKName("users..show"))
	assert.Empty(t, SDKName(""))
	assert.Empty(t, SDKName(".."))
}
