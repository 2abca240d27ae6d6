package core

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/sessions"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type operationForm struct {
	Kind          string
	AccountID     string
	DestinationID string
	Amount        string
	Description   string
}

// NewRouter constructs the console engine. Every page route passes through
// the same guard predicates the route table uses; the returned func releases
// the header's session subscription.
func NewRouter(cfg Config, store sessions.Store, sess *Session, gatherer prometheus.Gatherer, logger *zap.Logger) (*gin.Engine, func()) {
	if logger == nil {
		logger = zap.NewNop()
	}
	startedAt := time.Now()
	nav, stopNav := watchNavbar(sess.State)

	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	r.SetHTMLTemplate(loadTemplates())

	// Global middleware: origin -> ui session -> CSRF
	r.Use(OriginRefererMiddleware(cfg))
	r.Use(SessionMiddleware(cfg, store))
	r.Use(CSRFMiddleware(cfg))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "uptime_seconds": int64(time.Since(startedAt).Seconds())})
	})
	if gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	r.GET("/api/session", func(c *gin.Context) {
		c.JSON(http.StatusOK, CollectSessionStatus(c.Request.Context(), sess.Backend, sess.Tokens, sess.State, time.Now()))
	})

	r.GET("/api/profile", RequireLogin(sess.State), func(c *gin.Context) {
		profile, err := sess.Auth.Profile(c.Request.Context())
		if err != nil {
			respondFailure(c, err, msgProfileFailed)
			return
		}
		c.JSON(http.StatusOK, profile)
	})

	r.GET("/", func(c *gin.Context) {
		c.Redirect(http.StatusFound, LoginPath)
	})
	r.NoRoute(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api/") {
			respondError(c, http.StatusNotFound, "NOT_FOUND", "no such endpoint")
			return
		}
		c.Redirect(http.StatusFound, LoginPath)
	})

	// Public pages
	r.GET("/login", func(c *gin.Context) {
		render(c, nav, http.StatusOK, "login", "Login", gin.H{"Next": c.Query("next")})
	})
	r.POST("/login", func(c *gin.Context) {
		username := strings.TrimSpace(c.PostForm("username"))
		password := c.PostForm("password")
		next := c.PostForm("next")
		form := gin.H{"Username": username, "Next": next}

		if err := ValidateLogin(username, password); err != nil {
			renderFailure(c, nav, "login", "Login", err, "", form)
			return
		}
		if _, err := sess.Auth.Login(c.Request.Context(), username, password); err != nil {
			renderFailure(c, nav, "login", "Login", err, msgLoginFailed, form)
			return
		}
		c.Redirect(http.StatusFound, safeNext(next))
	})

	r.GET("/register", func(c *gin.Context) {
		if Authenticated(sess.State) {
			c.Redirect(http.StatusFound, DashboardPath)
			return
		}
		render(c, nav, http.StatusOK, "register", "Register", nil)
	})
	r.POST("/register", func(c *gin.Context) {
		username := strings.TrimSpace(c.PostForm("username"))
		password := c.PostForm("password")
		confirm := c.PostForm("confirmedPassword")
		form := gin.H{"Username": username}

		if err := ValidateSignup(username, password, confirm); err != nil {
			renderFailure(c, nav, "register", "Register", err, "", form)
			return
		}
		if err := sess.Auth.Register(c.Request.Context(), username, password, confirm); err != nil {
			renderFailure(c, nav, "register", "Register", err, msgRegisterFailed, form)
			return
		}
		addFlash(c, "Registration successful! Please log in.")
		c.Redirect(http.StatusFound, LoginPath)
	})

	r.POST("/logout", func(c *gin.Context) {
		sess.Auth.Logout(c.Request.Context())
		c.Redirect(http.StatusFound, LoginPath)
	})

	// Signed-in pages
	authed := r.Group("/")
	authed.Use(RequireLogin(sess.State))
	{
		authed.GET("/dashboard", func(c *gin.Context) {
			id := sess.State.Current()
			isAdmin := id != nil && id.IsAdmin()
			summary, err := sess.Bank.Summary(c.Request.Context(), isAdmin)
			if err != nil {
				logger.Warn("dashboard summary failed", zap.Error(err))
				renderFailure(c, nav, "dashboard", "Dashboard", err, "Error loading dashboard data", nil)
				return
			}
			render(c, nav, http.StatusOK, "dashboard", "Dashboard", gin.H{"Summary": &summary})
		})

		authed.GET("/profile", func(c *gin.Context) {
			profile, err := sess.Auth.Profile(c.Request.Context())
			if err != nil {
				renderFailure(c, nav, "profile", "Profile", err, msgProfileFailed, nil)
				return
			}
			render(c, nav, http.StatusOK, "profile", "Profile", gin.H{"Profile": profile})
		})

		authed.GET("/change-password", func(c *gin.Context) {
			render(c, nav, http.StatusOK, "change-password", "Change Password", nil)
		})
		authed.POST("/change-password", func(c *gin.Context) {
			oldPassword := c.PostForm("oldPassword")
			newPassword := c.PostForm("newPassword")
			confirm := c.PostForm("confirmPassword")
			if err := ValidatePasswordChange(oldPassword, newPassword, confirm, false); err != nil {
				renderFailure(c, nav, "change-password", "Change Password", err, "", nil)
				return
			}
			if err := sess.Auth.ChangePassword(c.Request.Context(), oldPassword, newPassword); err != nil {
				renderFailure(c, nav, "change-password", "Change Password", err, msgPasswordFailed, nil)
				return
			}
			addFlash(c, "Password changed successfully")
			c.Redirect(http.StatusFound, "/profile")
		})

		authed.GET("/accounts", func(c *gin.Context) {
			accounts, err := sess.Bank.Accounts(c.Request.Context())
			if err != nil {
				renderFailure(c, nav, "accounts", "Accounts", err, "Error loading accounts", nil)
				return
			}
			render(c, nav, http.StatusOK, "accounts", "Accounts", gin.H{"Accounts": accounts})
		})

		authed.GET("/accounts/:id", func(c *gin.Context) {
			page, _ := strconv.Atoi(c.DefaultQuery("page", "0"))
			history, err := sess.Bank.AccountHistory(c.Request.Context(), c.Param("id"), page, 10)
			if err != nil {
				renderFailure(c, nav, "account-details", "Account", err, "Error loading account", gin.H{"History": AccountHistory{AccountID: c.Param("id")}})
				return
			}
			data := gin.H{"History": history}
			if history.CurrentPage > 0 {
				data["PrevPage"] = strconv.Itoa(history.CurrentPage - 1)
			}
			if history.CurrentPage+1 < history.TotalPages {
				data["NextPage"] = strconv.Itoa(history.CurrentPage + 1)
			}
			render(c, nav, http.StatusOK, "account-details", "Account", data)
		})

		authed.GET("/operations", func(c *gin.Context) {
			render(c, nav, http.StatusOK, "operations", "Operations", gin.H{"Form": operationForm{Kind: "credit", AccountID: c.Query("accountId")}})
		})
		authed.POST("/operations", func(c *gin.Context) {
			form := operationForm{
				Kind:          c.PostForm("kind"),
				AccountID:     strings.TrimSpace(c.PostForm("accountId")),
				DestinationID: strings.TrimSpace(c.PostForm("destinationId")),
				Amount:        c.PostForm("amount"),
				Description:   strings.TrimSpace(c.PostForm("description")),
			}
			data := gin.H{"Form": form}
			amount, err := ParseAmount(form.Amount)
			if err == nil && form.AccountID == "" {
				err = validationError("Account is required")
			}
			if err != nil {
				renderFailure(c, nav, "operations", "Operations", err, "", data)
				return
			}

			ctx := c.Request.Context()
			switch form.Kind {
			case "credit":
				err = sess.Bank.Credit(ctx, form.AccountID, amount, form.Description)
			case "debit":
				err = sess.Bank.Debit(ctx, form.AccountID, amount, form.Description)
			case "transfer":
				if form.DestinationID == "" {
					err = validationError("Destination account is required")
				} else {
					err = sess.Bank.Transfer(ctx, form.AccountID, form.DestinationID, amount)
				}
			default:
				err = validationError("Unknown operation")
			}
			if err != nil {
				renderFailure(c, nav, "operations", "Operations", err, "Operation failed. Please try again.", data)
				return
			}
			addFlash(c, "Operation completed")
			c.Redirect(http.StatusFound, "/accounts/"+form.AccountID)
		})
	}

	// Admin pages
	admin := r.Group("/")
	admin.Use(RequireLogin(sess.State), RequireRole(sess.State, RoleAdmin))
	{
		admin.GET("/customers", func(c *gin.Context) {
			keyword := strings.TrimSpace(c.Query("keyword"))
			var (
				customers []Customer
				err       error
			)
			if keyword == "" {
				customers, err = sess.Bank.Customers(c.Request.Context())
			} else {
				customers, err = sess.Bank.SearchCustomers(c.Request.Context(), keyword)
			}
			data := gin.H{"Keyword": keyword, "Customers": customers}
			if err != nil {
				renderFailure(c, nav, "customers", "Customers", err, "Error loading customers", data)
				return
			}
			render(c, nav, http.StatusOK, "customers", "Customers", data)
		})

		admin.GET("/customers/new", func(c *gin.Context) {
			render(c, nav, http.StatusOK, "customer-form", "New Customer", gin.H{"Action": "/customers/new", "Customer": Customer{}})
		})
		admin.POST("/customers/new", func(c *gin.Context) {
			cust := customerFromForm(c)
			data := gin.H{"Action": "/customers/new", "Customer": cust}
			if err := validateCustomer(cust); err != nil {
				renderFailure(c, nav, "customer-form", "New Customer", err, "", data)
				return
			}
			saved, err := sess.Bank.SaveCustomer(c.Request.Context(), cust)
			if err != nil {
				renderFailure(c, nav, "customer-form", "New Customer", err, "Error saving customer", data)
				return
			}
			addFlash(c, "Customer created")
			c.Redirect(http.StatusFound, "/customers/"+strconv.FormatInt(saved.ID, 10))
		})

		admin.GET("/customers/:id", func(c *gin.Context) {
			id, ok := customerID(c)
			if !ok {
				return
			}
			ctx := c.Request.Context()
			cust, err := sess.Bank.Customer(ctx, id)
			if err != nil {
				renderFailure(c, nav, "customer-details", "Customer", err, "Error loading customer", gin.H{"Customer": Customer{ID: id}})
				return
			}
			accounts, err := sess.Bank.CustomerAccounts(ctx, id)
			data := gin.H{"Customer": cust, "Accounts": accounts}
			if err != nil {
				renderFailure(c, nav, "customer-details", cust.Name, err, "Error loading accounts", data)
				return
			}
			render(c, nav, http.StatusOK, "customer-details", cust.Name, data)
		})

		admin.GET("/customers/:id/edit", func(c *gin.Context) {
			id, ok := customerID(c)
			if !ok {
				return
			}
			action := "/customers/" + strconv.FormatInt(id, 10) + "/edit"
			cust, err := sess.Bank.Customer(c.Request.Context(), id)
			if err != nil {
				renderFailure(c, nav, "customer-form", "Edit Customer", err, "Error loading customer", gin.H{"Action": action, "Customer": Customer{ID: id}})
				return
			}
			render(c, nav, http.StatusOK, "customer-form", "Edit Customer", gin.H{"Action": action, "Customer": cust})
		})
		admin.POST("/customers/:id/edit", func(c *gin.Context) {
			id, ok := customerID(c)
			if !ok {
				return
			}
			cust := customerFromForm(c)
			cust.ID = id
			action := "/customers/" + strconv.FormatInt(id, 10) + "/edit"
			data := gin.H{"Action": action, "Customer": cust}
			if err := validateCustomer(cust); err != nil {
				renderFailure(c, nav, "customer-form", "Edit Customer", err, "", data)
				return
			}
			if _, err := sess.Bank.UpdateCustomer(c.Request.Context(), cust); err != nil {
				renderFailure(c, nav, "customer-form", "Edit Customer", err, "Error saving customer", data)
				return
			}
			addFlash(c, "Customer updated")
			c.Redirect(http.StatusFound, "/customers/"+strconv.FormatInt(id, 10))
		})

		admin.POST("/customers/:id/delete", func(c *gin.Context) {
			id, ok := customerID(c)
			if !ok {
				return
			}
			if err := sess.Bank.DeleteCustomer(c.Request.Context(), id); err != nil {
				addFlash(c, UserMessage(err, "Error deleting customer"))
			} else {
				addFlash(c, "Customer deleted")
			}
			c.Redirect(http.StatusFound, "/customers")
		})

		admin.GET("/accounts/new/:type", func(c *gin.Context) {
			kind, ok := accountKind(c)
			if !ok {
				return
			}
			render(c, nav, http.StatusOK, "account-form", "New Account", gin.H{"Kind": kind, "CustomerID": c.Query("customerId")})
		})
		admin.POST("/accounts/new/:type", func(c *gin.Context) {
			kind, ok := accountKind(c)
			if !ok {
				return
			}
			data := gin.H{
				"Kind":       kind,
				"CustomerID": c.PostForm("customerId"),
				"Initial":    c.PostForm("initialBalance"),
				"Rate":       c.PostForm("rate"),
			}
			customer, err := strconv.ParseInt(strings.TrimSpace(c.PostForm("customerId")), 10, 64)
			if err != nil || customer <= 0 {
				renderFailure(c, nav, "account-form", "New Account", validationError("Customer ID is required"), "", data)
				return
			}
			initial, err := decimal.NewFromString(strings.TrimSpace(c.PostForm("initialBalance")))
			if err != nil || initial.IsNegative() {
				renderFailure(c, nav, "account-form", "New Account", validationError("Initial balance must be zero or more"), "", data)
				return
			}
			rate, err := decimal.NewFromString(strings.TrimSpace(c.PostForm("rate")))
			if err != nil || rate.IsNegative() {
				renderFailure(c, nav, "account-form", "New Account", validationError("Rate must be zero or more"), "", data)
				return
			}
			acc, err := sess.Bank.OpenAccount(c.Request.Context(), kind, customer, initial, rate)
			if err != nil {
				renderFailure(c, nav, "account-form", "New Account", err, "Error creating account", data)
				return
			}
			addFlash(c, "Account created")
			c.Redirect(http.StatusFound, "/accounts/"+acc.ID)
		})
	}

	return r, stopNav
}

func customerFromForm(c *gin.Context) Customer {
	return Customer{
		Name:  strings.TrimSpace(c.PostForm("name")),
		Email: strings.TrimSpace(c.PostForm("email")),
	}
}

func validateCustomer(cust Customer) error {
	if len(cust.Name) < 4 {
		return validationError("Name must be at least 4 characters")
	}
	if !strings.Contains(cust.Email, "@") {
		return validationError("Email is invalid")
	}
	return nil
}

func customerID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.Redirect(http.StatusFound, "/customers")
		return 0, false
	}
	return id, true
}

func accountKind(c *gin.Context) (string, bool) {
	kind := strings.ToLower(c.Param("type"))
	if kind != "current" && kind != "saving" {
		c.Redirect(http.StatusFound, "/accounts")
		return "", false
	}
	return kind, true
}
