package bot

// User-facing texts.
const (
	txtSessionExpired = "Session expired."
	txtUseCommand     = "Use a command to start. Send /start for help."
	txtBusy           = "⏳ Still working on your last request, please wait."
	txtNotAllowed     = "Not allowed"
	txtUnsupported    = "Unsupported action"

	txtNotOwner        = "❌ You are not the owner."
	txtAdminPanel      = "Admin control panel — toggle features:"
	txtFeatureToggled  = "Feature toggled."
	txtToggled         = "Toggled"
	txtUnknownFeature  = "Unknown feature"
	txtChatDisabled    = "Chat is disabled by owner."
	txtChatUsage       = "Usage: /chat <your message>"
	txtChatAsking      = "💬 Asking support..."
	txtChatNotSetup    = "Chatbase not configured."
	txtChatNoResponse  = "No response from Chatbase."
	txtChatErrorPrefix = "Chatbase error: "

	txtQRGenDisabled = "QR generation is disabled by owner."
	txtChooseType    = "Choose QR type:"
	txtUnknownType   = "Unknown QR type"
	txtWiFiSending   = "✅ Generated QR — sending..."
	txtQRGenFailed   = "❌ QR generation failed."

	txtQRScanDisabled   = "QR scan disabled by owner."
	txtScanPrompt       = "📸 Send QR image within 60s. I'll try local decode first."
	txtScanTimeout      = "⏰ Timeout — no image."
	txtNoImage          = "No image."
	txtDownloadFailed   = "❌ Could not download the image."
	txtScanning         = "🔎 Scanning locally..."
	txtLocalDecoded     = "✅ Local decode:\n"
	txtFallbackOffer    = "Local failed. Use external decoder?"
	txtFallbackYes      = "✅ Yes — external (api.qrserver.com)"
	txtFallbackNo       = "❌ No — cancel"
	txtCancelled        = "Cancelled."
	txtExternalDecoding = "🔁 External decoding..."
	txtExternalDecoded  = "✅ External decode:\n"
	txtExternalFailed   = "❌ External decode failed."

	txtShortenDisabled = "Shorten disabled by owner."
	txtAskURL          = "🔗 Send the long URL (http/https):"
	txtInvalidURL      = "Send valid URL."
	txtAskAlias        = "Optional: send alias or press Skip"
	txtAliasSkip       = "Skip (random)"
	txtAliasManual     = "Enter alias"
	txtTypeAlias       = "Type alias or press Skip."
	txtShortening      = "🔧 Shortening..."
	txtShorteningRand  = "🔧 Shortening random alias..."
	txtShortened       = "✅ Shortened:\n"
	txtShortenError    = "❌ Error: "

	txtBroadcastNotOwner = "❌ Only owner can broadcast."
	txtBroadcastDisabled = "Broadcast feature disabled by owner."
	txtBroadcastPrompt   = "Send the broadcast content (text or photo). You have 5 minutes to send it."
	txtBroadcastTimeout  = "Timeout. Broadcast cancelled."
	txtBroadcastPreview  = "Preview saved. Confirm to send to all users (will complete within ~5 minutes)."
	txtBroadcastConfirm  = "✅ Confirm send"
	txtBroadcastCancel   = "❌ Cancel"
	txtBroadcastPending  = "Confirm or cancel the broadcast with the buttons above."
	txtBroadcastStopped  = "Broadcast cancelled."
	txtBroadcastStarting = "Broadcast starting..."
	txtBroadcastNoUsers  = "No registered users to send."
)

// Texts sent by the command router to non-owners of owner-only commands.
const (
	AdminRejectText     = txtNotOwner
	BroadcastRejectText = txtBroadcastNotOwner
)
